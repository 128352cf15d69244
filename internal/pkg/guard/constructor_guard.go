// Package guard implements the constructor-guard pattern: a zero-size flag
// embedded in value objects and commands so that zero values, which bypassed
// their constructor, fail validation instead of silently carrying garbage.
package guard

import "errors"

// ErrNotConstructed is returned by Validate when no specific error is given
// for an object that was not created through its constructor.
var ErrNotConstructed = errors.New("object must be created via its constructor")

// ConstructorGuard records whether the embedding object went through its
// constructor. The zero value reports "not constructed".
type ConstructorGuard struct {
	constructed bool
}

// NewConstructorGuard returns a guard marking the object as properly built.
func NewConstructorGuard() ConstructorGuard {
	return ConstructorGuard{constructed: true}
}

// Validate returns nil for a constructed object, otherwise the provided
// error (or ErrNotConstructed when err is nil).
func (g ConstructorGuard) Validate(err error) error {
	if g.constructed {
		return nil
	}
	if err == nil {
		return ErrNotConstructed
	}
	return err
}
