package ecs

import (
	"slices"
	"strings"
)

// QueryOptions are the option flags of a query descriptor.
type QueryOptions uint8

const (
	IncludePrefab QueryOptions = 1 << iota
	IncludeDisabledEntities
	IgnoreComponentEnabledState
	FilterWriteGroup

	QueryOptionsDefault QueryOptions = 0
)

func (o QueryOptions) Has(flag QueryOptions) bool { return o&flag != 0 }

func (o QueryOptions) String() string {
	if o == QueryOptionsDefault {
		return "Default"
	}
	var parts []string
	for _, f := range []struct {
		flag QueryOptions
		name string
	}{
		{IncludePrefab, "IncludePrefab"},
		{IncludeDisabledEntities, "IncludeDisabledEntities"},
		{IgnoreComponentEnabledState, "IgnoreComponentEnabledState"},
		{FilterWriteGroup, "FilterWriteGroup"},
	} {
		if o.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// QueryDesc is the runtime form of an archetype descriptor.
type QueryDesc struct {
	All      []ComponentType
	Any      []ComponentType
	None     []ComponentType
	Disabled []ComponentType
	Absent   []ComponentType
	Present  []ComponentType

	ChangeFilter []ComponentID
	SharedFilter []ComponentID
	Options      QueryOptions
}

// Required returns the component types every matched chunk stores.
func (d QueryDesc) Required() []ComponentType {
	out := make([]ComponentType, 0, len(d.All)+len(d.Disabled)+len(d.Present))
	out = append(out, d.All...)
	out = append(out, d.Disabled...)
	return append(out, d.Present...)
}

// Guarantees reports whether every chunk matched by d stores id.
func (d QueryDesc) Guarantees(id ComponentID) bool {
	return slices.ContainsFunc(d.Required(), func(t ComponentType) bool { return t.ID == id })
}

// Access returns every component type touched by d with its access mode.
func (d QueryDesc) Access() []ComponentType {
	var out []ComponentType
	for _, set := range [][]ComponentType{d.All, d.Any, d.None, d.Disabled, d.Present} {
		out = append(out, set...)
	}
	return out
}

// SharedFilterValue restricts a query to chunks whose shared component equals Value.
type SharedFilterValue struct {
	ID    ComponentID
	Value any
}

// ChunkRange is one step of the query-range cursor: a chunk and the index window
// to visit inside it. When UseEnabledMask is set only the indices whose bit is set
// in Mask match.
type ChunkRange struct {
	Chunk          Chunk
	Start, End     int
	UseEnabledMask bool
	Mask           EnabledMask
	ChunkIndex     int
}

// Count returns the number of matched entities in the range.
func (r ChunkRange) Count() int {
	if !r.UseEnabledMask {
		return r.End - r.Start
	}
	return r.Mask.Window(r.Start, r.End).Count()
}

// Query is a compiled query the storage engine evaluates.
//
// The shared component filter is mutable state owned by the query. Enumerating one
// filtered query from two enumerators at the same time is undefined.
type Query interface {
	Desc() QueryDesc
	// Ranges returns the matching chunk ranges under the current filter.
	Ranges() []ChunkRange
	SetSharedComponentFilter(values ...SharedFilterValue)
	ResetFilter()
}

// VersionedQuery is implemented by queries supporting change filters.
type VersionedQuery interface {
	Query
	SetLastSystemVersion(version uint32)
}

// QueryProvider compiles descriptors into queries.
type QueryProvider interface {
	GetQuery(desc QueryDesc) Query
}

// CalculateBaseEntityIndices returns for every range the number of matched entities
// in all ranges before it.
func CalculateBaseEntityIndices(ranges []ChunkRange) []int {
	bases := make([]int, len(ranges))
	total := 0
	for i, r := range ranges {
		bases[i] = total
		total += r.Count()
	}
	return bases
}

// CheckQueryRequirements verifies that query guarantees every required type. It
// returns a *QueryRequirementError naming each missing type.
func CheckQueryRequirements(declaration string, query Query, required []ComponentType, types *TypeRegistry) error {
	desc := query.Desc()
	var missing []string
	for _, t := range required {
		if !desc.Guarantees(t.ID) {
			missing = append(missing, types.Name(t.ID))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &QueryRequirementError{Declaration: declaration, Missing: missing}
}

// PrepareQuery returns the query a trampoline iterates. A nil query is replaced by
// the one derived from desc; a caller-supplied query is checked against desc when
// safety checks are enabled.
func PrepareQuery(declaration string, query Query, desc QueryDesc, state *SystemState) (Query, error) {
	if query == nil {
		if state.Queries == nil {
			return nil, ErrNoQueryProvider
		}
		query = state.Queries.GetQuery(desc)
	} else if state.SafetyChecks {
		if err := CheckQueryRequirements(declaration, query, desc.Required(), state.Types); err != nil {
			return nil, err
		}
	}
	if vq, ok := query.(VersionedQuery); ok {
		vq.SetLastSystemVersion(state.LastSystemVersion())
	}
	return query, nil
}
