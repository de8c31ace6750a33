package memory

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for out-of-range learning settings.
var ErrInvalidConfig = errors.New("invalid learning config")

// FaultKind names the stage of the memory layer that failed.
type FaultKind string

const (
	FaultSignature FaultKind = "signature"
	FaultPatterns  FaultKind = "patterns"
	FaultPolicy    FaultKind = "policy"
	FaultRecipe    FaultKind = "recipe"
	FaultEvents    FaultKind = "events"
	FaultPanic     FaultKind = "panic"
)

// Fault is a contained memory layer failure. The caller keeps its own table.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string { return fmt.Sprintf("memory %s fault: %v", f.Kind, f.Err) }

func (f *Fault) Unwrap() error { return f.Err }

// protect runs fn and converts a panic into a Fault of kind.
func protect(kind FaultKind, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Kind: kind, Err: fmt.Errorf("%v", r)}
		}
	}()
	fn()
	return nil
}
