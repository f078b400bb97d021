package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"deadfall/internal/adminapi"
	"deadfall/internal/command"
	"deadfall/internal/config"
	"deadfall/internal/console"
	"deadfall/internal/game"
)

func main() {
	configPath := flag.String("config", "", "path to the INI config file (env-only when empty)")
	levelPath := flag.String("level", "", "path to a level file (built-in arena when empty)")
	bots := flag.Int("bots", 0, "number of AI players to field")
	botDifficulty := flag.String("bot-difficulty", "", "easy, medium or hard (config default when empty)")
	flag.Parse()

	if err := godotenv.Load(".env"); err == nil {
		log.Println("[server] loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[server] config: %v", err)
	}
	if *botDifficulty == "" {
		*botDifficulty = cfg.AI.DefaultDifficulty
	}

	engine := game.NewEngine(cfg)
	if *levelPath != "" {
		store, err := config.LoadFile(*levelPath)
		if err != nil {
			log.Fatalf("[server] level: %v", err)
		}
		lvl, err := game.LevelFromStore(store)
		if err != nil {
			log.Fatalf("[server] level: %v", err)
		}
		engine.SetLevel(lvl)
	}

	endpoint, err := game.NewEndpoint(cfg.Network)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	engine.AttachEndpoint(endpoint)

	eventLogPath := os.Getenv("EVENT_LOG_PATH")
	if eventLogPath == "" {
		eventLogPath = "events.jsonl"
	}
	if err := engine.EventLog().Start(eventLogPath); err != nil {
		log.Printf("[server] event log disabled: %v", err)
	} else {
		log.Printf("[server] event log: %s", eventLogPath)
	}

	for i := 0; i < *bots; i++ {
		name := fmt.Sprintf("bot-%02d", i+1)
		if _, err := engine.AddBot(name, -1, *botDifficulty); err != nil {
			log.Printf("[server] %s not added: %v", name, err)
		}
	}

	registry := command.NewRegistry()
	registerCommands(registry, engine, *botDifficulty)
	consoleSrv := console.NewServer(registry, os.Getenv("CONSOLE_SOCKET"))
	if err := consoleSrv.Start(); err != nil {
		log.Printf("[server] console disabled: %v", err)
	} else {
		defer consoleSrv.Stop()
	}

	hub := adminapi.NewHub()
	adminStop := make(chan struct{})
	go hub.Run(adminStop)
	go adminapi.StartPushLoop(hub, engine, 250*time.Millisecond, adminStop)
	router := adminapi.NewRouter(adminapi.RouterConfig{State: engine, Hub: hub})
	adminSrv := &http.Server{Addr: cfg.Server.AdminAddr, Handler: router}
	go func() {
		log.Printf("[server] admin api on http://%s", cfg.Server.AdminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[server] admin api: %v", err)
		}
	}()

	engine.Start()
	log.Printf("[server] replication on %s", endpoint.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Println("[server] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	adminSrv.Shutdown(shutdownCtx)
	close(adminStop)
	engine.Stop()
}

// registerCommands wires the developer-console command set.
func registerCommands(r *command.Registry, engine *game.Engine, defaultDifficulty string) {
	r.Register("help", func(args []string) (string, error) {
		return strings.Join(r.Names(), " "), nil
	})
	r.Register("players", func(args []string) (string, error) {
		var b strings.Builder
		for _, entry := range engine.Leaderboard() {
			fmt.Fprintf(&b, "%s kills=%d\n", entry.Key, int(entry.Score))
		}
		if b.Len() == 0 {
			return "no players", nil
		}
		return strings.TrimRight(b.String(), "\n"), nil
	})
	r.Register("bot", func(args []string) (string, error) {
		if len(args) < 1 {
			return "", fmt.Errorf("usage: bot <name> [difficulty]")
		}
		difficulty := defaultDifficulty
		if len(args) > 1 {
			difficulty = args[1]
		}
		if _, err := engine.AddBot(args[0], -1, difficulty); err != nil {
			return "", err
		}
		return "added " + args[0] + " (" + difficulty + ")", nil
	})
	r.Register("kick", func(args []string) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("usage: kick <name>")
		}
		if _, ok := engine.Player(args[0]); !ok {
			return "", fmt.Errorf("no such player %q", args[0])
		}
		engine.RemovePlayer(args[0])
		return "kicked " + args[0], nil
	})
	r.Register("team", func(args []string) (string, error) {
		switch {
		case len(args) == 2 && args[0] == "create":
			id := engine.CreateTeam(args[1])
			return fmt.Sprintf("team %q = %d", args[1], id), nil
		case len(args) == 3 && args[0] == "join":
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return "", fmt.Errorf("bad team id %q", args[1])
			}
			if err := engine.JoinTeam(args[2], id); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s -> team %d", args[2], id), nil
		default:
			return "", fmt.Errorf("usage: team create <name> | team join <id> <player>")
		}
	})
	r.Register("ticks", func(args []string) (string, error) {
		return strconv.FormatUint(engine.TickCount(), 10), nil
	})
}
