package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	eventBufferSize    = 1024
	maxEventsPerSec    = 4096 // global limit across all players
	maxEventsPerPlayer = 64   // per-player limit per second
	batchFlushSize     = 64
	batchFlushInterval = 100 * time.Millisecond
	limiterCleanup     = 5 * time.Minute
)

// EventLog is the match audit trail: a bounded ring buffer drained by an
// async writer goroutine, with global and per-player rate limits so a
// misbehaving client cannot flood the disk. Events that do not fit are
// dropped, never blocked on.
type EventLog struct {
	buffer    [eventBufferSize]Event
	writeHead uint64 // atomic, producer position
	readHead  uint64 // atomic, consumer position

	globalLimiter  *rate.Limiter
	playerLimiters sync.Map // map[string]*limiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewEventLog returns a log that drops everything until Start is called.
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(maxEventsPerSec, maxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens the output file and spawns the writer goroutines. An
// empty filePath keeps the log in-memory only (events are counted and
// then discarded by the writer).
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}
	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop flushes what remains and closes the file.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit appends an event, subject to the rate limits. Returns false when
// the event was dropped.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}
	if event.PlayerName != "" {
		if !el.playerLimiter(event.PlayerName).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	head := atomic.AddUint64(&el.writeHead, 1)
	tail := atomic.LoadUint64(&el.readHead)
	if head-tail >= eventBufferSize {
		// Ring is full: overwrite the oldest entry rather than block the
		// game loop.
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}

	event.Sequence = head
	el.buffer[head%eventBufferSize] = event

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple builds and emits an event in one call.
func (el *EventLog) EmitSimple(eventType EventType, tick uint64, playerName string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tick, playerName, payload))
}

func (el *EventLog) playerLimiter(playerName string) *rate.Limiter {
	if entry, ok := el.playerLimiters.Load(playerName); ok {
		e := entry.(*limiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}
	entry := &limiterEntry{
		limiter:  rate.NewLimiter(maxEventsPerPlayer, maxEventsPerPlayer/4),
		lastUsed: time.Now(),
	}
	actual, _ := el.playerLimiters.LoadOrStore(playerName, entry)
	return actual.(*limiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchFlushSize)
	for {
		select {
		case <-el.stopChan:
			if batch = el.collectBatch(batch[:0]); len(batch) > 0 {
				el.flushBatch(batch)
			}
			return
		case <-ticker.C:
			if batch = el.collectBatch(batch[:0]); len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(limiterCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterCleanup)
			el.playerLimiters.Range(func(key, value interface{}) bool {
				if value.(*limiterEntry).lastUsed.Before(cutoff) {
					el.playerLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)
	for i := tail; i < head && len(batch) < batchFlushSize; i++ {
		batch = append(batch, el.buffer[i%eventBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}
	return batch
}

func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()
	if el.file == nil {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.file.Write(data)
		el.file.Write([]byte("\n"))
	}
}

// Stats returns the log's counters. The admin API's /api/stats
// endpoint does not include them.
func (el *EventLog) Stats() map[string]interface{} {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)
	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": head - tail,
		"running": el.running.Load(),
	}
}
