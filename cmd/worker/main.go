package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/telemetry"
	"assessment-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 900
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	if cfg.QueueURL == "" {
		log.Fatal("AA_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("AA_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	shutdownTimeout := time.Duration(envInt("AA_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second
	concurrency := max(1, cfg.WorkerConcurrent)

	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.BuildContext(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	go func() {
		_ = app.Sweeper.Run(ctx)
	}()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{"queue_url": cfg.QueueURL, "concurrency": concurrency, "visibility_seconds": visibilitySeconds})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(cfg.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncQueueReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// In-flight jobs finish even after shutdown is requested.
				handleMessage(context.WithoutCancel(ctx), sqsClient, cfg.QueueURL, app.Runner, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": shutdownTimeout.String()})
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage deletes the message on success and on payloads that can
// never succeed. Run failures are left for redelivery; a redelivered job
// that is no longer queued is skipped by the runner.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, runner workerproc.Runner, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, "", "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		if e, ok := err.(workerproc.ErrMissingJobID); ok && e.RequestID != "" {
			fields["request_id"] = e.RequestID
		}
		telemetry.Error("worker.job.unparseable", fields)
		if deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncQueueUnrecoverable()
		}
		return
	}

	fields := baseFields(msg, decoded.JobID, decoded.RequestID)
	fields["assessment_id"] = decoded.AssessmentID
	fields["domain"] = decoded.Domain
	telemetry.Info("worker.job.received", fields)

	if err := workerproc.Process(ctx, runner, decoded); err != nil {
		failed := baseFields(msg, decoded.JobID, decoded.RequestID)
		failed["assessment_id"] = decoded.AssessmentID
		failed["error"] = err.Error()
		telemetry.Error("worker.job.failed", failed)
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.JobID, decoded.RequestID) {
		telemetry.Info("worker.job.done", baseFields(msg, decoded.JobID, decoded.RequestID))
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, jobID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, jobID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, jobID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, jobID, requestID string) map[string]any {
	fields := map[string]any{
		"job_id":         jobID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
