package music

import (
	"errors"
	"fmt"
)

var (
	// ErrPromptTooLong is matched by *PromptTooLongError.
	ErrPromptTooLong = errors.New("prompt too long")

	// ErrInvalidInput wraps song input validation failures.
	ErrInvalidInput = errors.New("invalid song input")
)

// PromptTooLongError reports a prompt still over the limit after lyrics
// truncation. Its message is shown to end users as-is.
type PromptTooLongError struct {
	Length int
	Limit  int
}

func (e *PromptTooLongError) Error() string {
	return "Song description is too long. Please shorten the lyrics or theme."
}

// Is makes errors.Is(err, ErrPromptTooLong) hold.
func (e *PromptTooLongError) Is(target error) bool {
	return target == ErrPromptTooLong
}

// Detail is the operator-facing form of the error.
func (e *PromptTooLongError) Detail() string {
	return fmt.Sprintf("prompt is %d characters, limit is %d", e.Length, e.Limit)
}
