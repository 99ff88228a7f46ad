package operation

import "github.com/fedgw/gateway/internal/schema"

// Kind is the root operation type: query, mutation, or subscription.
type Kind uint8

const (
	Query Kind = iota + 1
	Mutation
	Subscription
)

func (k Kind) String() string {
	switch k {
	case Mutation:
		return "mutation"
	case Subscription:
		return "subscription"
	default:
		return "query"
	}
}

// Operation is a bound, variable-resolved query/mutation/subscription:
// skip/include has already been evaluated against the concrete variable
// values supplied to Bind, so the selection tree below Root is exactly the
// set of fields this particular invocation must plan and execute. Fields
// still carry variable references in their arguments (QueryInputValue),
// since those are forwarded to subgraphs verbatim rather than inlined.
type Operation struct {
	Kind Kind
	Name string // operation name, "" if anonymous

	RootType schema.TypeID
	Root     *SelectionSet

	Variables []VariableDecl

	fields []boundFieldRecord // index 0 unused, FieldID 1-based
}

type VariableDecl struct {
	Name         string
	Type         *schema.TypeRef
	DefaultValue QueryInputValue
}

// SelectionSet is an ordered, response-key-deduplicated group of field
// selections, mirroring the teacher's collectedFieldMap merge-by-response-
// name behavior but additionally carrying the type condition each access
// path was collected under, since a polymorphic parent type (interface or
// union) can select the same response key under different concrete types
// with different underlying schema fields (spec.md §4.6's concrete vs.
// polymorphic response shape distinction starts here).
type SelectionSet struct {
	Groups []FieldGroup
}

type FieldGroup struct {
	ResponseKey string
	Entries     []FieldGroupEntry
}

type FieldGroupEntry struct {
	// TypeCondition is the concrete or abstract type this entry's selection
	// was collected under; 0 means "the parent type itself" (an
	// unconditional selection, the common case for a concrete parent).
	TypeCondition schema.TypeID
	Field         FieldID
}

type boundFieldRecord struct {
	responseKey string
	schemaField schema.FieldID
	parentType  schema.TypeID
	arguments   []BoundArgument
	selection   *SelectionSet // nil for a leaf (scalar/enum) field
}

// Field is a non-owning view over one bound field, analogous to the
// schema package's Walker pattern.
type Field struct {
	ID ID
}

// ID pairs a FieldID with the owning Operation so a Field view can be
// constructed standalone (the solution-space builder and partitioner carry
// these across package boundaries).
type ID struct {
	FieldID   FieldID
	Operation *Operation
}

func (op *Operation) Field(id FieldID) Field { return Field{ID: ID{FieldID: id, Operation: op}} }

func (f Field) rec() *boundFieldRecord { return &f.ID.Operation.fields[f.ID.FieldID] }

func (f Field) ResponseKey() string          { return f.rec().responseKey }
func (f Field) SchemaField() schema.FieldID  { return f.rec().schemaField }
func (f Field) ParentType() schema.TypeID    { return f.rec().parentType }
func (f Field) Arguments() []BoundArgument   { return f.rec().arguments }
func (f Field) Selection() *SelectionSet     { return f.rec().selection }
func (f Field) IsLeaf() bool                 { return f.rec().selection == nil }

type BoundArgument struct {
	Name  string
	Value QueryInputValue
}

// InputValueKind tags the QueryInputValue sum type.
type InputValueKind uint8

const (
	ValueVariable InputValueKind = iota + 1
	ValueInt
	ValueFloat
	ValueString
	ValueBoolean
	ValueNull
	ValueEnum
	ValueList
	ValueObject
)

// QueryInputValue is a bound input value that still distinguishes a
// variable reference from a literal, so the subquery builder (internal
// to the partitioner/executor boundary) can forward `variableValues`
// to a subgraph request instead of inlining them.
type QueryInputValue struct {
	Kind InputValueKind

	Raw          string            // literal scalar/enum raw text
	VariableName string            // set when Kind == ValueVariable
	List         []QueryInputValue // set when Kind == ValueList
	Object       []ObjectEntry     // set when Kind == ValueObject
}

type ObjectEntry struct {
	Name  string
	Value QueryInputValue
}
