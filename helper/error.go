package helper

import "fmt"

// NewError wraps an error with the operation it occurred in.
// The wrapped error stays available for errors.Is/errors.As checks.
func NewError(operation string, err error) error {
	return fmt.Errorf("error in %s: %w", operation, err)
}
