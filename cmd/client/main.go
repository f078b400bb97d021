package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"deadfall/internal/ai"
	"deadfall/internal/config"
	"deadfall/internal/entity"
	"deadfall/internal/game"
)

// The client is headless: rendering and keyboard handling live outside
// this module, so the local player is driven either by nothing (idle)
// or by an AI strategy running client-side.
func main() {
	serverAddr := flag.String("server", "127.0.0.1:9977", "server address")
	name := flag.String("name", "player", "player name")
	configPath := flag.String("config", "", "path to the INI config file (env-only when empty)")
	pilot := flag.String("pilot", "easy", "local input source: idle, easy, medium or hard")
	flag.Parse()

	godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[client] config: %v", err)
	}

	session, err := game.Connect(*serverAddr, *name, cfg)
	if err != nil {
		log.Fatalf("[client] %v", err)
	}
	defer session.Close()
	log.Printf("[client] %s connecting to %s", *name, *serverAddr)

	var op *ai.Operator
	if *pilot != "idle" {
		strat := ai.NewStrategy(*pilot, cfg.Simulation.WorldMinX, cfg.Simulation.WorldMaxX)
		op = ai.NewOperator(*name, strat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dt := 1.0 / cfg.Simulation.RPS
	ticker := time.NewTicker(time.Duration(float64(time.Second) * dt))
	defer ticker.Stop()

	var input entity.InputState
	for {
		select {
		case <-ctx.Done():
			log.Println("[client] shutting down")
			return
		case <-ticker.C:
			if op != nil {
				if snap := session.Engine().Snapshot(); snap != nil {
					op.Update(snap)
				}
				for _, a := range op.Drain(16) {
					applyAction(&input, a)
				}
			}
			session.Tick(dt*cfg.Simulation.TimeSpeed, input)
			input.Jump = false
			input.JumpDown = false
		}
	}
}

func applyAction(in *entity.InputState, a ai.Action) {
	switch a {
	case ai.ActionMoveLeft:
		in.MoveLeft, in.MoveRight = true, false
	case ai.ActionMoveRight:
		in.MoveLeft, in.MoveRight = false, true
	case ai.ActionStop:
		in.MoveLeft, in.MoveRight = false, false
	case ai.ActionJump:
		in.Jump = true
	case ai.ActionJumpDown:
		in.JumpDown = true
	case ai.ActionShot:
		in.Fire = true
	case ai.ActionRelax:
		in.Fire = false
	}
}
