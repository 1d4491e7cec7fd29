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

func main() {
	flow, err := bearingsim.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := flow.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("simulation exited: %v", err)
	}
	fmt.Printf("%d windows, %d anomalies\n", report.Windows, report.Anomalies)
}
