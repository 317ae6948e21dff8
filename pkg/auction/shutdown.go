package auction

import "sync/atomic"

// ShutdownSwitch is the process-wide emergency shutdown flag: set once
// by an external governance action, read by resolution and the unwind
// sweeper, never reset.
type ShutdownSwitch struct {
	flag atomic.Bool
}

func NewShutdownSwitch() *ShutdownSwitch {
	return &ShutdownSwitch{}
}

// Trigger activates emergency shutdown.
func (s *ShutdownSwitch) Trigger() {
	s.flag.Store(true)
}

// IsShutdown reports whether emergency shutdown is active.
func (s *ShutdownSwitch) IsShutdown() bool {
	return s.flag.Load()
}
