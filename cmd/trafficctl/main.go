// trafficctl drives and observes a traffic relay from the command line.
//
//	trafficctl simulate --host localhost --interval 5s
//	trafficctl publish light1 green
//	trafficctl watch --url ws://localhost:8081/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Set at build time via ldflags.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
