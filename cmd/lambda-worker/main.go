package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/RohitLad/resume-markup/internal/bootstrap"
	"github.com/RohitLad/resume-markup/internal/shared/config"
	"github.com/RohitLad/resume-markup/internal/shared/metrics"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
	"github.com/RohitLad/resume-markup/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	return processBatch(ctx, app.Callbacks, event.Records), nil
}

func processBatch(ctx context.Context, h workerproc.CallbackHandler, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		err := workerproc.Process(ctx, h, record.Body)
		switch {
		case err == nil:
			metrics.IncQueueJob("processed")
		case workerproc.IsUnrecoverable(err):
			metrics.IncQueueJob("dropped")
			telemetry.Error("lambda.worker.message_dropped", map[string]any{
				"message_id": record.MessageId,
				"error":      err.Error(),
			})
		default:
			metrics.IncQueueJob("failed")
			telemetry.Warn("lambda.worker.message_failed", map[string]any{
				"message_id": record.MessageId,
				"error":      err.Error(),
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
