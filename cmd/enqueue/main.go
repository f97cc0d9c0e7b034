// Command enqueue re-publishes report ids onto the processing queue. It is
// the operator tool for draining the dead-letter backlog or re-running the
// pipeline on specific reports after a fix.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/config"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/queue"
	"github.com/tejasbhor/civiclens-core/pkg/utils"
)

func main() {
	gotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	force := flag.Bool("force", false, "reprocess even already-classified reports")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: enqueue [-config path] [-force] <report-id> [report-id...]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "info",
		OutputPath: "stdout",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client, err := queue.NewClient(queue.Config{
		URI:                  cfg.Queue.URI,
		ReportQueue:          cfg.Queue.ReportQueue,
		RetryQueue:           cfg.Queue.RetryQueue,
		DeadLetterQueue:      cfg.Queue.DeadLetterQueue,
		NotificationExchange: cfg.Queue.NotificationExchange,
		RetryBaseDelay:       cfg.Queue.RetryBaseDelay,
		RetryMaxDelay:        cfg.Queue.RetryMaxDelay,
		MaxAttempts:          cfg.Queue.MaxAttempts,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message broker", zap.Error(err))
	}
	defer client.Close()

	reportQueue := queue.NewReportQueue(client, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0
	for _, arg := range flag.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			logger.Error("Skipping invalid report id", zap.String("arg", arg))
			failed++
			continue
		}
		if err := reportQueue.Publish(ctx, id, *force); err != nil {
			logger.Error("Failed to enqueue report", zap.Int64("report_id", id), zap.Error(err))
			failed++
			continue
		}
		logger.Info("Enqueued report", zap.Int64("report_id", id), zap.Bool("force", *force))
	}

	if failed > 0 {
		os.Exit(1)
	}
}
