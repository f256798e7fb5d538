package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	iems "github.com/svjp05/IEMS-SERVR"
)

func main() {
	cfg := iems.DefaultConfig()
	cfg.Simulator.Enabled = true

	flow, err := iems.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("build flow: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var seq atomic.Int64
	save := func(_ context.Context, s iems.Sample) (int64, error) {
		id := seq.Add(1)
		fmt.Printf("%s id=%d amplitude=%.2f metadata=%v\n",
			s.Timestamp.Format(time.RFC3339Nano), id, s.Amplitude, s.Metadata)
		return id, nil
	}

	if err := flow.Run(ctx, iems.StreamOutCallback("stdout", save)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
