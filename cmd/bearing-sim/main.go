package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/ghalamif/bearingsim/pkg/bearingsim"
)

const anomaliesMetric = "bearingsim_anomalies_total"

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
		fmt.Fprintf(os.Stderr, "bearing-sim %s: %v\n", cmd, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bearingsim.ErrSourceUnavailable):
		return 2
	default:
		return 1
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to simulator configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := bearingsim.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := flow.Run(ctx)
	printReport(os.Stdout, report)
	if errors.Is(err, context.Canceled) {
		fmt.Println("interrupted")
		return nil
	}
	return err
}

func printReport(w io.Writer, r bearingsim.Report) {
	fmt.Fprintf(w, "lines=%d processed=%d skipped=%d published=%d publish_failures=%d windows=%d anomalies=%d discarded=%d\n",
		r.Lines, r.Processed, r.Skipped, r.Published, r.PublishFailures, r.Windows, r.Anomalies, r.Discarded)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := bearingsim.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	cfgPath := fs.String("config", "", "Plot archived totals from this config's archive instead of polling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *cfgPath != "" {
		return plotArchive(ctx, *cfgPath)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var history []float64
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v, err := scrapeAnomalies(ctx, *url)
			if err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
				continue
			}
			history = appendBounded(history, v, 120)
			fmt.Printf("\n[%s] %s=%g\n", time.Now().Format(time.RFC3339), anomaliesMetric, v)
			fmt.Println(renderChart(history))
		}
	}
}

func plotArchive(ctx context.Context, cfgPath string) error {
	cfg, err := bearingsim.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	totals, err := bearingsim.ArchivedTotals(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Println("archive is empty")
		return nil
	}
	series := make([]float64, len(totals))
	for i, v := range totals {
		series[i] = float64(v)
	}
	fmt.Println(renderChart(series))
	return nil
}

func renderChart(series []float64) string {
	return asciigraph.Plot(series,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("anomalies total"))
}

func appendBounded(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func scrapeAnomalies(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return parseMetric(resp.Body, anomaliesMetric)
}

// parseMetric returns the value of an unlabelled sample in Prometheus text format.
func parseMetric(r io.Reader, name string) (float64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || !strings.HasPrefix(line, name+" ") {
			continue
		}
		return strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, name)), 64)
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("metric %s not found", name)
}

func printUsage() {
	fmt.Printf(`bearing-sim

Usage:
  bearing-sim <command> [flags]

Commands:
  run        Replay the configured recording to the broker and inference endpoint
  validate   Load and validate a config file without running
  stats      Chart the anomaly total from the metrics endpoint or the archive

Examples:
  bearing-sim run -config ./data/config.yaml
  bearing-sim validate -config ./data/config.yaml
  bearing-sim stats -url http://localhost:9100/metrics -interval 1s
  bearing-sim stats -config ./data/config.yaml
`)
}
