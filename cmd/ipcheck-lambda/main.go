// Ipcheck-lambda analyzes a bundle uploaded to S3 and emails the report.
//
// It is triggered by an S3 put event. Only the first record is processed.
// The function deadline is the time budget for the run.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/dlyoglab/ipcheck/internal/config"
	"github.com/dlyoglab/ipcheck/internal/pipeline"
)

type runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Status
}

type handler struct {
	log   *zap.Logger
	load  func() (config.Config, error)
	build func(cfg config.Config, log *zap.Logger) runner
}

func newHandler(log *zap.Logger) *handler {
	return &handler{
		log:  log,
		load: func() (config.Config, error) { return config.Load(nil) },
		build: func(cfg config.Config, log *zap.Logger) runner {
			return &pipeline.Pipeline{Config: cfg, Logger: log}
		},
	}
}

// Handle runs the pipeline for the first record of ev. The returned status
// marshals to {"statusCode": ..., "body": ...}.
func (h *handler) Handle(ctx context.Context, ev events.S3Event) (pipeline.Status, error) {
	loc, err := eventLocation(ev)
	if err != nil {
		h.log.Error("invalid event", zap.Error(err))
		return errorStatus(err), nil
	}
	cfg, err := h.load()
	if err != nil {
		h.log.Error("loading configuration", zap.Error(err))
		return errorStatus(err), nil
	}
	h.log.Info("bundle received", zap.String("location", loc), zap.Int("records", len(ev.Records)))
	return h.build(cfg, h.log).Run(ctx, pipeline.Request{Location: loc}), nil
}

// eventLocation returns the s3:// location of the first record. Object keys
// arrive form-encoded ("+" for space).
func eventLocation(ev events.S3Event) (string, error) {
	if len(ev.Records) == 0 {
		return "", errors.New("event has no S3 records")
	}
	rec := ev.Records[0].S3
	if rec.Bucket.Name == "" || rec.Object.Key == "" {
		return "", errors.New("event record has no bucket or key")
	}
	key, err := url.QueryUnescape(rec.Object.Key)
	if err != nil {
		return "", fmt.Errorf("decoding object key %q: %w", rec.Object.Key, err)
	}
	return "s3://" + rec.Bucket.Name + "/" + key, nil
}

func errorStatus(err error) pipeline.Status {
	return pipeline.Status{Code: http.StatusInternalServerError, Body: "Error: " + err.Error(), Err: err}
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	lambda.Start(newHandler(log).Handle)
}
