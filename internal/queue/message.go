package queue

import (
	"encoding/json"
	"time"

	"assessment-backend/internal/jobs"
)

// MessageVersion is bumped whenever Message changes incompatibly.
const MessageVersion = 1

// Message is the payload sent to analysis workers. Workers only need JobID;
// the rest is for logs and dead-letter triage.
type Message struct {
	JobID        string `json:"jobId"`
	AssessmentID string `json:"assessmentId"`
	Domain       string `json:"domain"`
	Attempt      int    `json:"attempt"`
	RequestID    string `json:"requestId"`
	EnqueuedAt   string `json:"enqueuedAt"`
	Version      int    `json:"version"`
}

// NewMessage describes a queued job.
func NewMessage(job jobs.Job, requestID string, at time.Time) Message {
	return Message{
		JobID:        job.ID,
		AssessmentID: job.AssessmentID,
		Domain:       job.Domain,
		Attempt:      job.Attempt,
		RequestID:    requestID,
		EnqueuedAt:   at.UTC().Format(time.RFC3339),
		Version:      MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
