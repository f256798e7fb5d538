package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	iems "github.com/svjp05/IEMS-SERVR"
)

func main() {
	flow, err := iems.ConfFromConfig(iems.DefaultConfig())
	if err != nil {
		log.Fatalf("build flow: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, samples, closeSamples := iems.NewChannelStore("fanout", 32)
	defer closeSamples()

	go fanoutWorker("ingest", samples)

	if err := flow.Run(ctx, iems.StreamOutStore(store)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, samples <-chan iems.Sample) {
	for s := range samples {
		fmt.Printf("[%s] sample %d amplitude=%.3f waveform=%v at %s\n",
			name, s.ID, s.Amplitude, s.Metadata["waveformType"], time.Now().Format(time.RFC3339))
	}
}
