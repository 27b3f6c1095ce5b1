package assessments

import "errors"

var (
	ErrNotFound          = errors.New("assessment not found")
	ErrInvalidTransition = errors.New("invalid assessment transition")
)
