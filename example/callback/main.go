package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/bearingsim"
)

// Prints every payload instead of sending it to a broker.
func main() {
	flow, err := bearingsim.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = flow.Run(ctx, bearingsim.StreamOutCallback("stdout", func(_ context.Context, msg bearingsim.Message) error {
		fmt.Printf("%s %s\n", msg.Topic, msg.Payload)
		return nil
	}))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("simulation exited: %v", err)
	}
}
