package common

import (
	"errors"
	"fmt"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module, or one of its flows, is halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when the module itself or the named flow is
// paused. Flows are addressed as "<module>.<flow>", e.g. "lending.borrow".
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	if root, _, found := strings.Cut(module, "."); found && p.IsPaused(root) {
		return fmt.Errorf("%w: %s", ErrModulePaused, root)
	}
	return nil
}

// StaticPauses is a fixed pause table keyed by module or flow name.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[module]
}
