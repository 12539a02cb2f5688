package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/in4it/imagepipe/pkg/config"
	"github.com/in4it/imagepipe/pkg/pipeline"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("lambda")

// The function is selected with IMAGEPIPE_HANDLER: catalog, mailer, metadata
// or metadata-sqs. Configuration comes from the environment.
func main() {
	cfg, err := config.Load(os.Getenv("IMAGEPIPE_CONFIG"))
	if err != nil {
		panic(err)
	}
	loggo.ConfigureLoggers(cfg.LogConfig)

	kind := os.Getenv("IMAGEPIPE_HANDLER")
	handler, err := newHandler(cfg, kind)
	if err != nil {
		panic(err)
	}
	logger.Infof("Starting %s handler", kind)
	lambda.Start(handler)
}

// newHandler fails on incomplete configuration so a misconfigured function
// stops at cold start.
func newHandler(cfg config.Config, kind string) (interface{}, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := pipeline.NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	mailer, err := pipeline.NewMailer(cfg)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(cfg, pipeline.Deps{Store: store, Mailer: mailer})
	return p.LambdaHandler(kind)
}
