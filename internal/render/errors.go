package render

import "fmt"

// ValidationError reports invalid compositor input. It is terminal: jobs
// carrying one must not be retried, since the same input will fail again.
type ValidationError struct {
	Param  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("render: invalid %s: %s", e.Param, e.Detail)
}

func invalidParam(param, format string, args ...any) *ValidationError {
	return &ValidationError{Param: param, Detail: fmt.Sprintf(format, args...)}
}
