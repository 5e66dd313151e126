package binding

import (
	"errors"
	"fmt"
)

var (
	ErrWidgetIDRequired    = errors.New("binding: widget id is required")
	ErrWidgetNotBound      = errors.New("binding: widget is not bound")
	ErrSupervisorDestroyed = errors.New("binding: supervisor destroyed")
	ErrUnknownProvider     = errors.New("binding: provider not registered")
	ErrRendererMissing     = errors.New("binding: renderer not registered")
)

// ProviderError is the failure signal a merged stream emits when one
// provider's upstream fails.
type ProviderError struct {
	Shape    DataShape
	SourceID string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("binding: provider %s (%s) failed: %v", e.SourceID, e.Shape, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking widget task or provider.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("binding: recovered panic: %v", e.Value)
}
