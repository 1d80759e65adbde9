package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named protocol module is administratively
// halted. Engines consult it at the top of every mutating entry point.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
