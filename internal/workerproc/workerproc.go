// Package workerproc turns raw queue payloads into job runs. It is shared by
// the long-poll worker and the Lambda handler.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"assessment-backend/internal/queue"
	"assessment-backend/internal/shared/requestid"
)

// Runner executes one analysis job by id.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingJobID indicates a message without a job id.
type ErrMissingJobID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingJobID) Error() string { return "missing job id" }

// ErrProcess indicates the run failed after the message parsed. The message
// should be left for redelivery.
type ErrProcess struct {
	JobID     string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process job"
	}
	return "process job: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the payload can never be processed
// and should be deleted rather than redelivered.
func Unrecoverable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingJobID:
		return true
	}
	return false
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return msg, meta, ErrMissingJobID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Process runs a parsed message under its originating request id.
func Process(ctx context.Context, r Runner, msg queue.Message) error {
	ctx = requestid.With(ctx, msg.RequestID)
	if err := r.Run(ctx, msg.JobID); err != nil {
		return ErrProcess{JobID: msg.JobID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, r Runner, body string) error {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return Process(ctx, r, msg)
}
