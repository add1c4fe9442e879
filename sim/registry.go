package sim

// UnitRegistry keeps the units and unit types of a simulation in insertion
// order. It does not synchronize; the engine only mutates it while the
// simulation loop is not running.
type UnitRegistry struct {
	units []Unit
	types []UnitType
}

// NewUnitRegistry creates an empty registry.
func NewUnitRegistry() *UnitRegistry {
	return &UnitRegistry{}
}

// Add appends a unit. It returns false if the unit is already registered.
func (r *UnitRegistry) Add(u Unit) bool {
	if r.IndexOf(u) >= 0 {
		return false
	}

	r.units = append(r.units, u)

	return true
}

// Remove deletes a unit, keeping the order of the others. It returns false if
// the unit is not registered.
func (r *UnitRegistry) Remove(u Unit) bool {
	i := r.IndexOf(u)
	if i < 0 {
		return false
	}

	newUnits := make([]Unit, 0, len(r.units)-1)
	newUnits = append(newUnits, r.units[:i]...)
	newUnits = append(newUnits, r.units[i+1:]...)
	r.units = newUnits

	return true
}

// IndexOf returns the position of a unit, or -1.
func (r *UnitRegistry) IndexOf(u Unit) int {
	for i, registered := range r.units {
		if registered == u {
			return i
		}
	}

	return -1
}

// Unit returns the unit at position i.
func (r *UnitRegistry) Unit(i int) Unit {
	return r.units[i]
}

// Len returns the number of units.
func (r *UnitRegistry) Len() int {
	return len(r.units)
}

// Units returns a copy of the unit list.
func (r *UnitRegistry) Units() []Unit {
	units := make([]Unit, len(r.units))
	copy(units, r.units)

	return units
}

// AddType appends a unit type.
func (r *UnitRegistry) AddType(t UnitType) {
	r.types = append(r.types, t)
}

// Types returns a copy of the unit type list.
func (r *UnitRegistry) Types() []UnitType {
	types := make([]UnitType, len(r.types))
	copy(types, r.types)

	return types
}

// Type returns the first unit type with the given identifier, or nil.
func (r *UnitRegistry) Type(identifier string) UnitType {
	for _, t := range r.types {
		if t.Identifier() == identifier {
			return t
		}
	}

	return nil
}

// TypeCount returns the number of unit types.
func (r *UnitRegistry) TypeCount() int {
	return len(r.types)
}
