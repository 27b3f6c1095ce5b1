package jobs

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"assessment-backend/internal/agents"
)

const (
	ErrorCodeAgentTimeout       = "AGENT_TIMEOUT"
	ErrorCodeAgentOutputInvalid = "AGENT_OUTPUT_INVALID"
	ErrorCodeStorage            = "STORAGE_ERROR"
	ErrorCodeCancelled          = "CANCELLED"
	ErrorCodeInternal           = "INTERNAL_ERROR"
)

// errStorage marks failures reading or writing engine state around a call.
var errStorage = errors.New("storage")

func classifyFailure(err error) (string, bool) {
	switch {
	case err == nil:
		return ErrorCodeInternal, false
	case errors.Is(err, agents.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeAgentTimeout, true
	case errors.Is(err, agents.ErrInvalidOutput):
		return ErrorCodeAgentOutputInvalid, false
	case errors.Is(err, context.Canceled):
		return ErrorCodeCancelled, true
	case errors.Is(err, errStorage):
		return ErrorCodeStorage, true
	}
	return ErrorCodeInternal, false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToValidUTF8(err.Error(), "\uFFFD")
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	// error_message is a text column; the cut must land on a rune boundary.
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
