package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	iems "github.com/svjp05/IEMS-SERVR"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("iems-server %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to server configuration file")
	memory := fs.Bool("memory", false, "Use the in-memory store instead of Postgres")
	simulate := fs.Bool("simulate", false, "Enable the simulated data generator")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := iems.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *memory {
		cfg.Postgres.ConnString = iems.MemoryConnString
	}
	if *simulate {
		cfg.Simulator.Enabled = true
	}

	flow, err := iems.ConfFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := iems.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good: listening on %s (raw %s, events %s), metrics on %s\n",
		*cfgPath, cfg.Server.Addr, cfg.Server.RawPath, cfg.Server.EventsPath, cfg.Metrics.Addr)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return fmt.Errorf("parse metrics: %w", err)
	}

	fmt.Printf("[%s] frames=%.0f saved=%.0f frame_errors=%.0f dropped=%.0f sent=%.0f raw=%.0f events=%.0f\n",
		time.Now().Format(time.RFC3339),
		sum(families["iems_frames_received_total"]),
		sum(families["iems_samples_saved_total"]),
		sum(families["iems_frame_errors_total"]),
		sum(families["iems_samples_dropped_total"]),
		sum(families["iems_broadcast_sent_total"]),
		sum(families["iems_raw_socket_connections"]),
		sum(families["iems_event_channel_connections"]),
	)
	return nil
}

// sum adds up every series of a counter or gauge family.
func sum(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.GetCounter() != nil:
			total += m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			total += m.GetGauge().GetValue()
		}
	}
	return total
}

func printUsage() {
	fmt.Printf(`IEMS ingest server

Usage:
  iems-server <command> [flags]

Commands:
  run        Start the server using the provided config
  validate   Load and validate a config file without starting the server
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  iems-server run -config ./data/config.yaml
  iems-server run -config ./data/config.yaml -memory -simulate
  iems-server validate -config ./data/config.yaml
  iems-server stats -url http://localhost:9100/metrics -interval 1s
`)
}
