package schema

// All ids are non-zero; 0 expresses "optional, absent" throughout the arenas.

type SubgraphID uint32

type TypeID uint32

type FieldID uint32

type ResolverID uint32

type FieldSetID uint32

type DirectiveSiteID uint32

type ArgumentID uint32

type StringID uint32

func (id StringID) IsZero() bool { return id == 0 }
func (id TypeID) IsZero() bool   { return id == 0 }
func (id FieldID) IsZero() bool  { return id == 0 }
