package query

import (
	"slices"

	"github.com/zeusync/ecsgen/internal/codegen/classify"
	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/diag"
	"github.com/zeusync/ecsgen/internal/core/models"
)

type modifier struct {
	membership Membership
	types      []string
}

// Builder accumulates the parameters and modifiers of one declaration site. Build
// applies them in a fixed order, so the modifier call order does not matter.
type Builder struct {
	site     string
	universe *models.Universe
	params   []classify.Parameter
	mods     []modifier
	changes  []string
	shared   []string
	options  [][]string
}

func NewBuilder(site string, u *models.Universe) *Builder {
	return &Builder{site: site, universe: u}
}

// FromDeclaration returns a builder fed with params and every modifier of d.
func FromDeclaration(d decl.Declaration, params []classify.Parameter, u *models.Universe) *Builder {
	b := NewBuilder(d.Name, u)
	for _, p := range params {
		b.Iterate(p)
	}
	b.WithAll(d.WithAll...).
		WithAny(d.WithAny...).
		WithNone(d.WithNone...).
		WithDisabled(d.WithDisabled...).
		WithAbsent(d.WithAbsent...).
		WithPresent(d.WithPresent...).
		WithChangeFilter(d.WithChangeFilter...).
		WithSharedComponentFilter(d.WithSharedComponentFilter...)
	for _, call := range d.WithOptions {
		b.WithOptions(call...)
	}
	return b
}

// Iterate adds a classified parameter. Entity and index parameters are ignored.
func (b *Builder) Iterate(p classify.Parameter) *Builder {
	if p.Kind.Iterated() {
		b.params = append(b.params, p)
	}
	return b
}

func (b *Builder) with(m Membership, types []string) *Builder {
	if len(types) > 0 {
		b.mods = append(b.mods, modifier{membership: m, types: types})
	}
	return b
}

func (b *Builder) WithAll(types ...string) *Builder      { return b.with(All, types) }
func (b *Builder) WithAny(types ...string) *Builder      { return b.with(Any, types) }
func (b *Builder) WithNone(types ...string) *Builder     { return b.with(None, types) }
func (b *Builder) WithDisabled(types ...string) *Builder { return b.with(Disabled, types) }
func (b *Builder) WithAbsent(types ...string) *Builder   { return b.with(Absent, types) }
func (b *Builder) WithPresent(types ...string) *Builder  { return b.with(Present, types) }

func (b *Builder) WithChangeFilter(types ...string) *Builder {
	b.changes = append(b.changes, types...)
	return b
}

func (b *Builder) WithSharedComponentFilter(types ...string) *Builder {
	b.shared = append(b.shared, types...)
	return b
}

// WithOptions records one WithOptions call. Flags of repeated calls are combined.
func (b *Builder) WithOptions(flags ...string) *Builder {
	b.options = append(b.options, flags)
	return b
}

type iterated struct {
	info       models.TypeInfo
	readOnly   bool
	enableable bool
}

type entryKey struct {
	name       string
	membership Membership
}

type build struct {
	*Builder
	l        *diag.List
	iterated map[string]*iterated
	order    []string
	entries  map[entryKey]*Query
	keys     []entryKey
}

func (s *build) add(info models.TypeInfo, m Membership, readOnly, isIterated bool) {
	k := entryKey{name: info.Name, membership: m}
	if e, ok := s.entries[k]; ok {
		e.ReadOnly = e.ReadOnly && readOnly
		e.Iterated = e.Iterated || isIterated
		return
	}
	s.entries[k] = &Query{Type: info, Membership: m, ReadOnly: readOnly, Iterated: isIterated}
	s.keys = append(s.keys, k)
}

func (s *build) remove(name string, m Membership) {
	k := entryKey{name: name, membership: m}
	delete(s.entries, k)
	s.keys = slices.DeleteFunc(s.keys, func(o entryKey) bool { return o == k })
}

func (s *build) has(name string, ms ...Membership) bool {
	for _, m := range ms {
		if _, ok := s.entries[entryKey{name: name, membership: m}]; ok {
			return true
		}
	}
	return false
}

func (s *build) lookup(name string) (models.TypeInfo, bool) {
	info, ok := s.universe.Lookup(name)
	if !ok || !info.Kind.IsComponent() {
		s.l.Errorf(diag.UnknownModifierType, "", "%s is not a component type", name)
		return models.TypeInfo{}, false
	}
	return info, true
}

// Build produces the descriptor. The descriptor is only meaningful when the list
// holds no errors.
func (b *Builder) Build() (Descriptor, *diag.List) {
	s := &build{
		Builder:  b,
		l:        diag.NewList(b.site),
		iterated: make(map[string]*iterated),
		entries:  make(map[entryKey]*Query),
	}

	s.seed()
	// redirections first so a WithAll on a redirected type is seen as a conflict
	for _, m := range []Membership{Any, None, Disabled, Present, All, Absent} {
		for _, mod := range b.mods {
			if mod.membership == m {
				s.apply(mod)
			}
		}
	}
	s.changeFilters()
	s.sharedFilters()
	opts := s.resolveOptions()
	s.checkExclusion()

	d := Descriptor{Options: opts}
	for _, k := range s.keys {
		e := *s.entries[k]
		switch k.membership {
		case All:
			d.All = append(d.All, e)
		case Any:
			d.Any = append(d.Any, e)
		case None:
			d.None = append(d.None, e)
		case Disabled:
			d.Disabled = append(d.Disabled, e)
		case Absent:
			d.Absent = append(d.Absent, e)
		case Present:
			d.Present = append(d.Present, e)
		}
	}
	for _, name := range dedupe(b.changes) {
		if info, ok := b.universe.Lookup(name); ok {
			d.ChangeFilter = append(d.ChangeFilter, info)
		}
	}
	for _, name := range dedupe(b.shared) {
		if info, ok := b.universe.Lookup(name); ok {
			d.SharedFilter = append(d.SharedFilter, info)
		}
	}

	if !d.HasOption("IgnoreComponentEnabledState") {
		for _, set := range [][]Query{d.All, d.Any, d.None, d.Disabled} {
			for _, q := range set {
				d.UsesEnabledMask = d.UsesEnabledMask || q.Type.Enableable
			}
		}
	}
	return d, s.l
}

// seed adds every iterated type to All. Aspects contribute their requirements.
func (s *build) seed() {
	note := func(info models.TypeInfo, readOnly, enableable bool) {
		if it, ok := s.iterated[info.Name]; ok {
			it.readOnly = it.readOnly && readOnly
			it.enableable = it.enableable || enableable
			return
		}
		s.iterated[info.Name] = &iterated{info: info, readOnly: readOnly, enableable: enableable}
		s.order = append(s.order, info.Name)
	}

	for _, p := range s.params {
		if p.Kind != classify.Aspect {
			note(p.Info, p.ReadOnly, p.Enableable)
			continue
		}
		for _, r := range p.Info.Requires {
			info, ok := s.universe.Lookup(r.Type)
			if !ok {
				s.l.Errorf(diag.UnknownType, p.Name, "aspect %s requires unknown type %s", p.Info.Name, r.Type)
				continue
			}
			note(info, r.ReadOnly, info.Enableable)
		}
	}
	for _, name := range s.order {
		it := s.iterated[name]
		s.add(it.info, All, it.readOnly, true)
	}
}

func (s *build) apply(mod modifier) {
	for _, name := range mod.types {
		info, ok := s.lookup(name)
		if !ok {
			continue
		}
		it, isIterated := s.iterated[name]
		switch mod.membership {
		case Any, None, Disabled, Present:
			if isIterated && it.enableable {
				s.remove(name, All)
				s.add(info, mod.membership, it.readOnly, true)
				continue
			}
			s.add(info, mod.membership, true, false)
		case All:
			s.add(info, All, true, false)
		case Absent:
			if isIterated && it.enableable {
				s.l.Errorf(diag.AbsentIterated, "", "%s is iterated and cannot be required absent", name)
				continue
			}
			s.add(info, Absent, true, false)
		}
	}
}

func (s *build) changeFilters() {
	names := dedupe(s.changes)
	if len(names) > MaxChangeFilters {
		s.l.Errorf(diag.TooManyChangeFilters, "", "too many change filter types: %d (max %d)", len(names), MaxChangeFilters)
	}
	for _, name := range names {
		info, ok := s.lookup(name)
		if !ok {
			continue
		}
		if !s.has(name, All, Any, Disabled, Present) {
			s.add(info, All, true, false)
		}
	}
}

func (s *build) sharedFilters() {
	names := dedupe(s.shared)
	if len(names) > MaxSharedFilters {
		s.l.Errorf(diag.TooManySharedFilters, "", "too many shared component filter types: %d (max %d)", len(names), MaxSharedFilters)
	}
	for _, name := range names {
		info, ok := s.lookup(name)
		if !ok {
			continue
		}
		if info.Kind != models.KindShared {
			s.l.Errorf(diag.SharedFilterNotShared, "", "%s is a %s, not a shared component", name, info.Kind)
			continue
		}
		if !s.has(name, All) {
			s.add(info, All, true, false)
		}
	}
}

func (s *build) resolveOptions() []string {
	if len(s.options) > 1 {
		s.l.Warnf(diag.MultipleWithOptions, "", "WithOptions called %d times, flags are combined", len(s.options))
	}
	set := make(map[string]bool)
	for _, call := range s.options {
		for _, flag := range call {
			if !slices.Contains(Options, flag) {
				s.l.Errorf(diag.UnknownOption, "", "unknown query option %q", flag)
				continue
			}
			set[flag] = true
		}
	}
	var out []string
	for _, flag := range Options[1:] {
		if set[flag] {
			out = append(out, flag)
		}
	}
	return out
}

func (s *build) checkExclusion() {
	for _, pair := range exclusive {
		for _, k := range s.keys {
			if k.membership != pair[0] || !s.has(k.name, pair[1]) {
				continue
			}
			a, b := pair[0].String(), pair[1].String()
			if e := s.entries[entryKey{name: k.name, membership: pair[1]}]; e.Iterated && pair[1] == All {
				b = "iterated"
			}
			s.l.Errorf(diag.MutuallyExclusive, "", "%s cannot be both %s and %s", k.name, a, b)
		}
	}
}

func dedupe(names []string) []string {
	var out []string
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
