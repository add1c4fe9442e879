package builtin

import (
	"github.com/sarchlab/motesim/sim/serialization"
)

// Register adds the built-in types to a registry.
func Register(r *serialization.TypeRegistry) error {
	err := r.RegisterType(&CounterMoteType{})
	if err != nil {
		return err
	}

	err = r.RegisterType(&CounterMote{})
	if err != nil {
		return err
	}

	err = r.RegisterType(&SilentMedium{})
	if err != nil {
		return err
	}

	return r.Register(
		serialization.TypeName(&RangeMedium{}),
		func() any { return NewRangeMedium() },
	)
}
