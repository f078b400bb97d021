// Package metrics exposes the simulation's Prometheus instrumentation:
// tick timing, collision counts, replication packet counters and the
// AI worker's queue depth.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Time spent in one fixed-timestep simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.032},
	})

	collisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_collisions_total",
		Help: "Total narrowphase collisions resolved",
	})

	aiQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ai_action_queue_depth",
		Help: "Sum of pending actions across all AI operator queues",
	})

	reliableOutstanding = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replication_reliable_outstanding",
		Help: "Reliable sends awaiting acknowledgement",
	})

	// packetsTotal is labeled only by a bounded inbound-packet outcome
	// (the fixed set the game endpoint reports), never by peer address.
	packetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_packets_total",
		Help: "Replication packets by outcome",
	}, []string{"outcome"})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_player_count",
		Help: "Currently connected players",
	})
)

// RecordTick observes one tick's wall-clock duration.
func RecordTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// IncrementCollisions adds n resolved collisions to the running total.
func IncrementCollisions(n int) { collisionsTotal.Add(float64(n)) }

// SetAIQueueDepth reports the current summed AI action-queue depth.
func SetAIQueueDepth(depth int) { aiQueueDepth.Set(float64(depth)) }

// SetReliableOutstanding reports the current count of in-flight
// reliable sends.
func SetReliableOutstanding(n int) { reliableOutstanding.Set(float64(n)) }

// RecordPacket increments the counter for one inbound-packet outcome:
// "ok", "ack", "ack_corrupted", "corrupted", "malformed",
// "rate_limited", "unknown_kind" or "recv_error".
func RecordPacket(outcome string) { packetsTotal.WithLabelValues(outcome).Inc() }

// SetPlayerCount reports the current connected-player count.
func SetPlayerCount(n int) { playerCount.Set(float64(n)) }
