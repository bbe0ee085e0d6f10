// Package main starts the passive tree service and handles termination.
//
// The process owns character passive allocations and derived stat vectors;
// game servers talk to it over HTTP and its WebSocket watch stream.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	passivescmd "github.com/louisbranch/hollowspire.game/internal/cmd/passives"
)

func main() {
	cfg, err := passivescmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[PASSIVES] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := passivescmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
