package workerproc

import (
	"context"
	"errors"
	"testing"

	"assessment-backend/internal/queue"
	"assessment-backend/internal/shared/requestid"
)

type fakeRunner struct {
	err       error
	jobID     string
	requestID string
}

func (f *fakeRunner) Run(ctx context.Context, jobID string) error {
	f.jobID = jobID
	f.requestID = requestid.From(ctx)
	return f.err
}

func TestParseMessageErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want func(error) bool
	}{
		{"empty", "  ", func(err error) bool { _, ok := err.(ErrEmptyBody); return ok }},
		{"bad json", "{bad-json", func(err error) bool { _, ok := err.(ErrDecode); return ok }},
		{"missing job", `{"assessmentId":"a-1","requestId":"r-1"}`, func(err error) bool {
			e, ok := err.(ErrMissingJobID)
			return ok && e.RequestID == "r-1"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, meta, err := ParseMessage(tc.body)
			if !tc.want(err) {
				t.Fatalf("unexpected error %T: %v", err, err)
			}
			if !Unrecoverable(err) {
				t.Fatalf("expected %v to be unrecoverable", err)
			}
			if tc.name != "empty" && (meta.BodyLen == 0 || len(meta.BodySHA) != 64) {
				t.Fatalf("missing meta: %+v", meta)
			}
		})
	}
}

func TestHandleMessageRunsJob(t *testing.T) {
	body, _ := queue.EncodeMessage(queue.Message{JobID: "job-1", RequestID: "req-1", Version: 1})
	runner := &fakeRunner{}
	if err := HandleMessage(context.Background(), runner, string(body)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if runner.jobID != "job-1" || runner.requestID != "req-1" {
		t.Fatalf("unexpected run: %+v", runner)
	}
}

func TestHandleMessageWrapsRunFailure(t *testing.T) {
	boom := errors.New("db down")
	body, _ := queue.EncodeMessage(queue.Message{JobID: "job-2"})
	err := HandleMessage(context.Background(), &fakeRunner{err: boom}, string(body))
	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.JobID != "job-2" || !errors.Is(err, boom) {
		t.Fatalf("expected ErrProcess wrapping boom, got %v", err)
	}
	if Unrecoverable(err) {
		t.Fatalf("run failures must be redelivered")
	}
}
