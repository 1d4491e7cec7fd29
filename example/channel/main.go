package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"sync"
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

	pub, messages, closeMessages := bearingsim.NewChannelPublisher("fanout", 32)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		summaryWorker(flow.Config().MQTT.AnomaliesTopic, messages)
	}()

	_, err = flow.Run(ctx, bearingsim.StreamOutPublisher(pub))
	closeMessages()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("simulation exited: %v", err)
	}
}

func summaryWorker(topic string, messages <-chan bearingsim.Message) {
	for msg := range messages {
		if msg.Topic != topic {
			continue
		}
		fmt.Printf("summary %s\n", msg.Payload)
	}
}
