package vm

// ---------------------------------------------------------------------------
// Property attributes and descriptors
// ---------------------------------------------------------------------------

// PropFlags holds property attributes.
type PropFlags uint8

const (
	FlagWritable PropFlags = 1 << iota
	FlagEnumerable
	FlagConfigurable
	FlagAccessor

	// FlagsDefault is the attribute set of properties created by assignment.
	FlagsDefault = FlagWritable | FlagEnumerable | FlagConfigurable
	// FlagsHidden is the attribute set of built-in methods.
	FlagsHidden = FlagWritable | FlagConfigurable
)

// Property is one own property: a value or a getter/setter pair plus
// attributes.
type Property struct {
	Value  Value
	Getter *Object
	Setter *Object
	Flags  PropFlags
}

// DataProperty creates a data property.
func DataProperty(v Value, flags PropFlags) Property {
	return Property{Value: v, Flags: flags &^ FlagAccessor}
}

// AccessorProperty creates an accessor property. Accessors have no
// writable attribute.
func AccessorProperty(get, set *Object, flags PropFlags) Property {
	return Property{Getter: get, Setter: set, Flags: (flags &^ FlagWritable) | FlagAccessor}
}

func (p Property) IsAccessor() bool   { return p.Flags&FlagAccessor != 0 }
func (p Property) Writable() bool     { return p.Flags&FlagWritable != 0 }
func (p Property) Enumerable() bool   { return p.Flags&FlagEnumerable != 0 }
func (p Property) Configurable() bool { return p.Flags&FlagConfigurable != 0 }

// descField marks which members of a descriptor are present.
type descField uint8

const (
	hasValue descField = 1 << iota
	hasGet
	hasSet
	hasWritable
	hasEnumerable
	hasConfigurable
)

// PropertyDescriptor is a partial property description as accepted by
// Object.defineProperty. Absent fields keep their current value or
// default to false/undefined for new properties.
type PropertyDescriptor struct {
	Value        Value
	Get          *Object
	Set          *Object
	Writable     bool
	Enumerable   bool
	Configurable bool

	has descField
}

// DataDescriptor returns a complete data descriptor.
func DataDescriptor(v Value, flags PropFlags) PropertyDescriptor {
	return PropertyDescriptor{
		Value:        v,
		Writable:     flags&FlagWritable != 0,
		Enumerable:   flags&FlagEnumerable != 0,
		Configurable: flags&FlagConfigurable != 0,
		has:          hasValue | hasWritable | hasEnumerable | hasConfigurable,
	}
}

// AccessorDescriptor returns a complete accessor descriptor.
func AccessorDescriptor(get, set *Object, flags PropFlags) PropertyDescriptor {
	return PropertyDescriptor{
		Get:          get,
		Set:          set,
		Enumerable:   flags&FlagEnumerable != 0,
		Configurable: flags&FlagConfigurable != 0,
		has:          hasGet | hasSet | hasEnumerable | hasConfigurable,
	}
}

func (d PropertyDescriptor) isAccessor() bool { return d.has&(hasGet|hasSet) != 0 }
func (d PropertyDescriptor) isData() bool     { return d.has&(hasValue|hasWritable) != 0 }

// apply merges d into the existing property p.
func (d PropertyDescriptor) apply(p Property) Property {
	switch {
	case d.isAccessor() && !p.IsAccessor():
		p = Property{Flags: p.Flags&(FlagEnumerable|FlagConfigurable) | FlagAccessor}
	case d.isData() && p.IsAccessor():
		p = Property{Value: Undefined, Flags: p.Flags & (FlagEnumerable | FlagConfigurable)}
	}
	if d.has&hasValue != 0 {
		p.Value = d.Value
	}
	if d.has&hasGet != 0 {
		p.Getter = d.Get
	}
	if d.has&hasSet != 0 {
		p.Setter = d.Set
	}
	setFlag := func(present bool, on bool, f PropFlags) {
		if !present {
			return
		}
		if on {
			p.Flags |= f
		} else {
			p.Flags &^= f
		}
	}
	setFlag(d.has&hasWritable != 0, d.Writable, FlagWritable)
	setFlag(d.has&hasEnumerable != 0, d.Enumerable, FlagEnumerable)
	setFlag(d.has&hasConfigurable != 0, d.Configurable, FlagConfigurable)
	if p.Value == nil && !p.IsAccessor() {
		p.Value = Undefined
	}
	return p
}

// toProperty builds a new property from d, defaulting absent fields.
func (d PropertyDescriptor) toProperty() Property {
	if d.isAccessor() {
		return d.apply(Property{Flags: FlagAccessor})
	}
	return d.apply(Property{Value: Undefined})
}

// compatible reports whether d may be applied to the existing property p.
func (d PropertyDescriptor) compatible(p Property) bool {
	if p.Configurable() {
		return true
	}
	if d.has&hasConfigurable != 0 && d.Configurable {
		return false
	}
	if d.has&hasEnumerable != 0 && d.Enumerable != p.Enumerable() {
		return false
	}
	switch {
	case d.isAccessor():
		if !p.IsAccessor() {
			return false
		}
		if d.has&hasGet != 0 && d.Get != p.Getter {
			return false
		}
		if d.has&hasSet != 0 && d.Set != p.Setter {
			return false
		}
	case d.isData():
		if p.IsAccessor() {
			return false
		}
		if !p.Writable() {
			if d.has&hasWritable != 0 && d.Writable {
				return false
			}
			if d.has&hasValue != 0 && !SameValue(d.Value, p.Value) {
				return false
			}
		}
	}
	return true
}
