package sim

import (
	"log"

	"github.com/sarchlab/motesim/sim/hooking"
)

// A LogHook is a hook that writes what happens in the simulation to a log.
type LogHook interface {
	hooking.Hook
}

// LogHookBase holds the logger that a LogHook writes to.
type LogHookBase struct {
	*log.Logger
}
