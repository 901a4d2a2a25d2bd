package agent

import (
	"fmt"

	"github.com/deskmcp/deskmcp/internal/backend"
)

// ErrorKind classifies the failure that terminated an agent run.
type ErrorKind string

const (
	// KindDiscovery means a tool server could not be reached to fetch its catalog,
	// or its tools could not be merged into the catalog.
	KindDiscovery ErrorKind = "DiscoveryError"
	// KindToolResolution means the model asked for a tool that is not in the catalog.
	KindToolResolution ErrorKind = "ToolResolutionError"
	// KindToolExecution means the tool server failed to execute the requested tool.
	KindToolExecution ErrorKind = "ToolExecutionError"
	// KindBackendConnection means the model backend could not be reached.
	KindBackendConnection ErrorKind = "BackendConnectionError"
	// KindBackendProtocol means the model backend answered with something unusable,
	// including a tool call beyond the allowed depth.
	KindBackendProtocol ErrorKind = "BackendProtocolError"
)

// Error is the single structured failure of an agent run.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// backendError maps a model backend failure onto the agent error kinds.
func backendError(err error) *Error {
	if backend.ErrorKindOf(err) == backend.KindConnection {
		return newError(KindBackendConnection, err, "failed to reach the model backend")
	}
	return newError(KindBackendProtocol, err, "failed to get a completion from the model backend")
}
