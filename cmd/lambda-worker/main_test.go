package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"assessment-backend/internal/queue"
)

type stubRunner struct {
	fail map[string]bool
}

func (s stubRunner) Run(ctx context.Context, jobID string) error {
	if s.fail[jobID] {
		return errors.New("transient")
	}
	return nil
}

func TestProcessBatchReportsOnlyRetryableFailures(t *testing.T) {
	ok, _ := queue.EncodeMessage(queue.Message{JobID: "job-ok"})
	bad, _ := queue.EncodeMessage(queue.Message{JobID: "job-bad"})
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "1", Body: string(ok)},
		{MessageId: "2", Body: string(bad)},
		{MessageId: "3", Body: "not json"},
	}}

	resp := processBatch(context.Background(), stubRunner{fail: map[string]bool{"job-bad": true}}, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "2" {
		t.Fatalf("unexpected failures: %+v", resp.BatchItemFailures)
	}
}
