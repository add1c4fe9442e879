package sim

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/motesim/sim/hooking"
)

// EventLogger is a hook that prints the lifecycle and configuration changes
// of an engine.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which will write in to the logger
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger
	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	e, ok := ctx.Domain.(*Engine)
	if !ok || ctx.Pos == nil {
		return
	}

	switch detail := ctx.Detail.(type) {
	case RunInfo:
		if detail.Err != nil {
			h.Printf("%d ms, %s, run %s, %d rounds, %v",
				e.SimulationTime(), ctx.Pos.Name,
				detail.ID, detail.Rounds, detail.Err)
			return
		}

		h.Printf("%d ms, %s, run %s, %d rounds",
			e.SimulationTime(), ctx.Pos.Name, detail.ID, detail.Rounds)
	default:
		if ctx.Item == nil {
			h.Printf("%d ms, %s", e.SimulationTime(), ctx.Pos.Name)
			return
		}

		h.Printf("%d ms, %s, %s",
			e.SimulationTime(), ctx.Pos.Name, describe(ctx.Item))
	}
}

func describe(item any) string {
	switch v := item.(type) {
	case UnitType:
		return v.Identifier()
	case int64:
		return fmt.Sprintf("%d", v)
	case nil:
		return "<nil>"
	}

	return reflect.TypeOf(item).String()
}
