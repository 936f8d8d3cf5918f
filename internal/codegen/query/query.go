// Package query builds the archetype descriptor of one declaration site from its
// classified parameters and explicit modifiers.
package query

import (
	"fmt"
	"slices"

	"github.com/zeusync/ecsgen/internal/core/models"
)

// Membership is the set a component type belongs to in a descriptor.
type Membership uint8

const (
	All Membership = iota
	Any
	None
	Disabled
	Absent
	Present
	ChangeFilter
)

func (m Membership) String() string {
	switch m {
	case All:
		return "All"
	case Any:
		return "Any"
	case None:
		return "None"
	case Disabled:
		return "Disabled"
	case Absent:
		return "Absent"
	case Present:
		return "Present"
	case ChangeFilter:
		return "ChangeFilter"
	default:
		return fmt.Sprintf("Membership(%d)", uint8(m))
	}
}

// Memberships are the type sets of a descriptor in declaration order.
var Memberships = []Membership{All, Any, None, Disabled, Absent, Present}

const (
	MaxChangeFilters = 2
	MaxSharedFilters = 2
)

// Options are the flag names WithOptions accepts.
var Options = []string{"Default", "IncludePrefab", "IncludeDisabledEntities", "IgnoreComponentEnabledState", "FilterWriteGroup"}

// Query is one component type of a descriptor.
type Query struct {
	Type       models.TypeInfo
	Membership Membership
	ReadOnly   bool
	// Iterated is set when a parameter reads the type.
	Iterated bool
}

// Descriptor is the deduplicated archetype descriptor of a declaration site.
type Descriptor struct {
	All      []Query
	Any      []Query
	None     []Query
	Disabled []Query
	Absent   []Query
	Present  []Query
	// ChangeFilter and SharedFilter name component types.
	ChangeFilter []models.TypeInfo
	SharedFilter []models.TypeInfo
	// Options are the flag names in declaration order, Default removed.
	Options []string
	// UsesEnabledMask is set when iteration must honour enabled bits.
	UsesEnabledMask bool
}

// Set returns the entries of membership m.
func (d *Descriptor) Set(m Membership) []Query {
	switch m {
	case All:
		return d.All
	case Any:
		return d.Any
	case None:
		return d.None
	case Disabled:
		return d.Disabled
	case Absent:
		return d.Absent
	case Present:
		return d.Present
	default:
		return nil
	}
}

// Contains reports whether typ is a member of m.
func (d *Descriptor) Contains(m Membership, typ string) bool {
	return slices.ContainsFunc(d.Set(m), func(q Query) bool { return q.Type.Name == typ })
}

// HasOption reports whether flag was requested.
func (d *Descriptor) HasOption(flag string) bool {
	return slices.Contains(d.Options, flag)
}

// exclusive lists the membership pairs no type may occupy together. Iterated types
// live in All unless redirected, so the All pairs cover them.
var exclusive = [][2]Membership{
	{Absent, All},
	{Absent, Any},
	{Absent, Disabled},
	{Absent, Present},
	{None, All},
	{None, Any},
	{Any, All},
	{Disabled, All},
}
