package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/config"
	"github.com/in4it/imagepipe/pkg/publish"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("publish-metadata")

func main() {
	var (
		configPath string
		topicArn   string
		update     api.MetadataUpdate
	)
	flag.StringVar(&configPath, "config", "", "path to the pipeline config (yaml)")
	flag.StringVar(&topicArn, "topic-arn", "", "metadata topic (overrides config)")
	flag.StringVar(&update.Key, "key", "", "object key of the image")
	flag.StringVar(&update.Attribute, "type", "", "attribute to set (Caption, Date, Photographer)")
	flag.StringVar(&update.Value, "value", "", "new value")

	flag.Parse()

	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		panic(err)
	}
	loggo.ConfigureLoggers(cfg.LogConfig)

	if topicArn == "" {
		topicArn = cfg.Queues.MetadataTopicArn
	}
	if topicArn == "" {
		fmt.Fprintln(os.Stderr, "no metadata topic: set -topic-arn or queues.metadataTopicArn")
		os.Exit(2)
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		logger.Errorf("Couldn't create session: %s", err)
		os.Exit(1)
	}
	publisher := publish.NewPublisher(queue.NewSNSTopic(sns.New(sess), topicArn), api.NewWhitelist(cfg.Metadata.Whitelist...))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := publisher.PublishUpdate(ctx, update); err != nil {
		logger.Errorf("Couldn't publish update: %s", err)
		os.Exit(1)
	}
	logger.Infof("Published %s=%q for %s", update.Attribute, update.Value, update.Key)
}
