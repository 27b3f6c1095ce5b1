package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/telemetry"
	"assessment-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env); err != nil {
		initErr = err
		return
	}
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

// handler reports failed records individually so only they are redelivered.
// Unparseable records are dropped.
func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.Runner, event), nil
}

func processBatch(ctx context.Context, runner workerproc.Runner, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		err := workerproc.HandleMessage(ctx, runner, record.Body)
		if err == nil {
			continue
		}
		fields := map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()}
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.job.unparseable", fields)
			continue
		}
		telemetry.Error("worker.job.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
