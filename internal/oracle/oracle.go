package oracle

import (
	"context"
	"errors"
	"fmt"
)

// ResponseFormat selects the shape of the completion output.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

// Role identifies which research role is speaking. It selects the upstream
// persona and lets scripted stubs return role-specific output.
type Role string

const (
	RolePlanner     Role = "planner"
	RoleAnalyst     Role = "analyst"
	RoleSynthesizer Role = "synthesizer"
	RoleReporter    Role = "reporter"
	RoleCoordinator Role = "coordinator"
)

// CompletionRequest is one structured prompt to the completion capability.
type CompletionRequest struct {
	Role         Role
	SystemPrompt string
	UserPrompt   string
	Format       ResponseFormat
	Model        string
}

// Oracle is an opaque text/JSON completion capability. Implementations may
// return a non-nil error (the call failed outright) or a string that later
// fails JSON parsing; callers must handle both.
type Oracle interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ErrorKind classifies oracle call failures.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
	KindStatus      ErrorKind = "status"
)

// Error is returned for oracle transport failures.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("oracle %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is an oracle timeout.
func IsTimeout(err error) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == KindTimeout
}
