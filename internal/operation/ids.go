package operation

// FieldID addresses a bound field within one Operation's arena. 0 is never
// a valid field id (the root selection set is not itself a field).
type FieldID uint32

// VariableID addresses a declared operation variable.
type VariableID uint32

func (id FieldID) IsZero() bool { return id == 0 }
