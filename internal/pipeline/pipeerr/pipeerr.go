// Package pipeerr defines the pipeline's typed error taxonomy. Every
// error that crosses a stage boundary is a *JobError, constructed
// through one of the New* helpers below so callers can branch on Kind
// or use errors.As/errors.Is against the sentinel kinds.
package pipeerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories a stage may produce.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindModelOutput     Kind = "ModelOutputError"
	KindExternalService Kind = "ExternalServiceError"
	KindRender          Kind = "RenderError"
	KindComposition     Kind = "CompositionError"
	KindStorage         Kind = "StorageError"
	KindCancelled       Kind = "Cancelled"
)

// JobError wraps an underlying cause with a Kind and, for render
// failures, the scene that failed. It satisfies errors.Unwrap so
// callers can still reach the original cause (a context deadline, an
// *os.PathError, an HTTP status) with errors.As.
type JobError struct {
	Kind    Kind
	SceneID int // only meaningful when Kind == KindRender
	Stage   string
	Msg     string
	Cause   error
}

func (e *JobError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *JobError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, pipeerr.Cancelled) match any *JobError whose
// Kind is KindCancelled, without comparing other fields.
func (e *JobError) Is(target error) bool {
	t, ok := target.(*JobError)
	if !ok {
		return false
	}
	if t.Cause == nil && t.Msg == "" && t.SceneID == 0 {
		return e.Kind == t.Kind
	}
	return false
}

// Cancelled is the sentinel used with errors.Is to detect cooperative
// cancellation regardless of which stage raised it.
var Cancelled = &JobError{Kind: KindCancelled}

func NewValidation(stage, msg string) error {
	return &JobError{Kind: KindValidation, Stage: stage, Msg: msg}
}

func NewValidationf(stage, format string, args ...any) error {
	return &JobError{Kind: KindValidation, Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

func NewModelOutput(stage, msg string, cause error) error {
	return &JobError{Kind: KindModelOutput, Stage: stage, Msg: msg, Cause: cause}
}

func NewExternalService(stage, msg string, cause error) error {
	return &JobError{Kind: KindExternalService, Stage: stage, Msg: msg, Cause: cause}
}

func NewRender(stage string, sceneID int, msg string, cause error) error {
	return &JobError{Kind: KindRender, Stage: stage, SceneID: sceneID, Msg: msg, Cause: cause}
}

func NewComposition(stage, msg string, cause error) error {
	return &JobError{Kind: KindComposition, Stage: stage, Msg: msg, Cause: cause}
}

func NewStorage(stage, msg string, cause error) error {
	return &JobError{Kind: KindStorage, Stage: stage, Msg: msg, Cause: cause}
}

func NewCancelled(stage string) error {
	return &JobError{Kind: KindCancelled, Stage: stage, Msg: "job cancelled"}
}

// KindOf extracts the Kind of err if it is (or wraps) a *JobError,
// returning ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind, true
	}
	return "", false
}

// SceneIDOf extracts the SceneID of a render error, 0 otherwise.
func SceneIDOf(err error) int {
	var je *JobError
	if errors.As(err, &je) && je.Kind == KindRender {
		return je.SceneID
	}
	return 0
}
