package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/beanbocchi/parcel/internal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := internal.Start(ctx); err != nil {
		log.Panicf("failed to start server: %v", err)
	}
}
