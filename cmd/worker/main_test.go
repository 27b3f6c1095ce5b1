package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"assessment-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRunner struct {
	err  error
	runs []string
}

func (f *fakeRunner) Run(ctx context.Context, jobID string) error {
	f.runs = append(f.runs, jobID)
	return f.err
}

func sqsMessage(id, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	body, _ := queue.EncodeMessage(queue.Message{JobID: "job-1", RequestID: "req-1", Version: 1})

	handleMessage(context.Background(), client, "queue", runner, sqsMessage("m1", string(body)))

	if len(runner.runs) != 1 || runner.runs[0] != "job-1" {
		t.Fatalf("expected job-1 to run, got %v", runner.runs)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "r-m1" {
		t.Fatalf("expected delete, got %v", client.deleted)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{err: errors.New("db unavailable")}
	body, _ := queue.EncodeMessage(queue.Message{JobID: "job-2", RequestID: "req-2"})

	handleMessage(context.Background(), client, "queue", runner, sqsMessage("m2", string(body)))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesUnparseableMessages(t *testing.T) {
	for _, body := range []string{"{bad-json", "", `{"requestId":"req-3"}`} {
		client := &fakeSQS{}
		runner := &fakeRunner{}

		handleMessage(context.Background(), client, "queue", runner, sqsMessage("m3", body))

		if len(client.deleted) != 1 || len(runner.runs) != 0 {
			t.Fatalf("body %q: expected delete without run, got deleted=%v runs=%v", body, client.deleted, runner.runs)
		}
	}
}
