package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/in4it/imagepipe/pkg/config"
	"github.com/in4it/imagepipe/pkg/deadletter"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("deadletter")

// Drains the dead-letter queue into the archive bucket and exits.
func main() {
	var (
		configPath string
		bucket     string
		prefix     string
	)
	flag.StringVar(&configPath, "config", "", "path to the pipeline config (yaml)")
	flag.StringVar(&bucket, "bucket", "", "archive bucket (overrides config)")
	flag.StringVar(&prefix, "prefix", "", "archive key prefix (overrides config)")

	flag.Parse()

	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		panic(err)
	}
	loggo.ConfigureLoggers(cfg.LogConfig)
	if bucket != "" {
		cfg.Archive.Bucket = bucket
	}
	if prefix != "" {
		cfg.Archive.Prefix = prefix
	}
	if cfg.Archive.Bucket == "" {
		logger.Errorf("No archive bucket configured")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		logger.Errorf("Couldn't create session: %s", err)
		os.Exit(1)
	}
	svc, err := queue.NewSQSClient(cfg.Region)
	if err != nil {
		logger.Errorf("Couldn't create SQS client: %s", err)
		os.Exit(1)
	}
	dlq, err := queue.NewSQSQueueByName(ctx, svc, cfg.Queues.DeadLetter)
	if err != nil {
		logger.Errorf("Couldn't resolve %s: %s", cfg.Queues.DeadLetter, err)
		os.Exit(1)
	}

	archiver := deadletter.NewArchiver(deadletter.ArchiveConfig{
		Bucket: cfg.Archive.Bucket,
		Prefix: cfg.Archive.Prefix,
	}, dlq, s3manager.NewUploader(sess))
	n, err := archiver.Run(ctx)
	if err != nil {
		logger.Errorf("Archive stopped after %d messages: %s", n, err)
		os.Exit(1)
	}
	logger.Infof("Archived %d messages to s3://%s/%s", n, cfg.Archive.Bucket, cfg.Archive.Prefix)
}
