// Package classify turns declared access parameters into typed parameter
// descriptors and reports the parameter legality rules they break.
package classify

import (
	"fmt"

	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/diag"
	"github.com/zeusync/ecsgen/internal/core/models"
)

// Kind is the semantic kind of a parameter. The set is closed: every kind has one
// classification rule in rules.
type Kind uint8

const (
	ValueComponent Kind = iota
	TagComponent
	ReadOnlyRef
	ReadWriteRef
	EnabledReadRef
	EnabledWriteRef
	Buffer
	SharedComponent
	ManagedComponent
	Aspect
	Entity
	PositionalIndex

	kindCount
)

var kindNames = [kindCount]string{
	ValueComponent:   "ValueComponent",
	TagComponent:     "TagComponent",
	ReadOnlyRef:      "ReadOnlyRef",
	ReadWriteRef:     "ReadWriteRef",
	EnabledReadRef:   "EnabledReadRef",
	EnabledWriteRef:  "EnabledWriteRef",
	Buffer:           "Buffer",
	SharedComponent:  "SharedComponent",
	ManagedComponent: "ManagedComponent",
	Aspect:           "Aspect",
	Entity:           "Entity",
	PositionalIndex:  "PositionalIndex",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Iterated reports whether parameters of the kind read a component type from chunk
// storage and therefore contribute to the query.
func (k Kind) Iterated() bool {
	return k != Entity && k != PositionalIndex
}

// Parameter is one classified parameter. It is immutable after Classify returns.
type Parameter struct {
	Name     string
	Type     decl.TypeRef
	Ref      decl.RefKind
	Kind     Kind
	ReadOnly bool
	// Enableable is set when the parameter's component carries an enabled bit.
	Enableable bool
	Info       models.TypeInfo
	Index      decl.IndexRole
	// Position is the index of the parameter in the declaration.
	Position int
}

// Field is the name of the item field carrying the parameter.
func (p Parameter) Field() string { return decl.ExportName(p.Name) }

// ValueType is the Go type the parameter is passed as, with the runtime package
// imported as ecs.
func (p Parameter) ValueType() string {
	t := p.Info.GoType
	switch p.Kind {
	case ValueComponent:
		if p.Ref == decl.Ref {
			return "*" + t
		}
		return t
	case ReadOnlyRef:
		return "ecs.RefRO[" + t + "]"
	case ReadWriteRef:
		return "ecs.RefRW[" + t + "]"
	case EnabledReadRef:
		return "ecs.EnabledRefRO[" + t + "]"
	case EnabledWriteRef:
		return "ecs.EnabledRefRW[" + t + "]"
	case Buffer:
		return "ecs.DynamicBuffer[" + t + "]"
	case Aspect:
		return p.Info.Qualified("", "Item")
	case Entity:
		return "ecs.Entity"
	case PositionalIndex:
		return "int"
	default:
		return t
	}
}

type rule func(p *Parameter, l *diag.List)

var rules = [kindCount]rule{
	ValueComponent:   classifyValue,
	TagComponent:     classifyTag,
	ReadOnlyRef:      classifyRef,
	ReadWriteRef:     classifyRef,
	EnabledReadRef:   classifyEnabledRef,
	EnabledWriteRef:  classifyEnabledRef,
	Buffer:           classifyBuffer,
	SharedComponent:  classifyShared,
	ManagedComponent: classifyManaged,
	Aspect:           classifyAspect,
	Entity:           classifyEntity,
	PositionalIndex:  classifyIndex,
}

// CheckStructure reports the declaration-level structural errors.
func CheckStructure(d decl.Declaration) *diag.List {
	l := diag.NewList(d.Name)
	switch n := d.Executes(); {
	case n == 0:
		l.Errorf(diag.MissingExecute, "", "no Execute method")
	case n > 1:
		l.Errorf(diag.MultipleExecute, "", "%d Execute methods, want exactly one", n)
	}
	if len(d.TypeParams) > 0 {
		l.Errorf(diag.GenericDecl, "", "generic declarations are not supported (type parameters %v)", d.TypeParams)
	}
	return l
}

// Classify classifies every parameter of d against u. Parameters that fail are
// left out of the result; every failure is reported in the returned list.
func Classify(d decl.Declaration, u *models.Universe) ([]Parameter, *diag.List) {
	l := diag.NewList(d.Name)
	access := d.EffectiveAccess()

	params := make([]Parameter, 0, len(d.Params))
	seenType := make(map[string]string)
	seenRole := make(map[decl.IndexRole]string)

	for i, dp := range d.Params {
		p, ok := classifyOne(i, dp, u, l)
		if !ok {
			continue
		}

		before := l.Len()
		rules[p.Kind](&p, l)
		if l.Len() != before {
			continue
		}

		if p.Kind.Iterated() {
			if p.Info.EffectiveAccess() < access {
				l.Errorf(diag.InaccessibleType, p.Name, "type %s is %s, less accessible than the %s declaration",
					p.Info.Name, p.Info.EffectiveAccess(), access)
				continue
			}
			if prev, dup := seenType[p.Info.Name]; dup {
				l.Errorf(diag.DuplicateComponent, p.Name, "component %s is already accessed by parameter %s", p.Info.Name, prev)
				continue
			}
			seenType[p.Info.Name] = p.Name
		}
		if p.Kind == PositionalIndex {
			if prev, dup := seenRole[p.Index]; dup {
				l.Errorf(diag.DuplicateIndexRole, p.Name, "index role %s is already claimed by parameter %s", p.Index, prev)
				continue
			}
			seenRole[p.Index] = p.Name
		}
		params = append(params, p)
	}
	return params, l
}

func classifyOne(pos int, dp decl.Param, u *models.Universe, l *diag.List) (Parameter, bool) {
	ref, err := decl.ParseTypeRef(dp.Type)
	if err != nil {
		l.Errorf(diag.UnknownType, dp.Name, "%v", err)
		return Parameter{}, false
	}
	info, ok := u.Lookup(ref.Elem)
	if !ok {
		l.Errorf(diag.UnknownType, dp.Name, "unrecognised type %s", ref.Elem)
		return Parameter{}, false
	}

	p := Parameter{
		Name:     dp.Name,
		Type:     ref,
		Ref:      dp.Ref,
		Info:     info,
		Index:    dp.Index,
		Position: pos,
	}
	if dp.Index != decl.NoIndex && info.Kind != models.KindInt {
		l.Errorf(diag.IndexNotInt, dp.Name, "index attribute %s needs an int parameter, got %s", dp.Index, dp.Type)
		return Parameter{}, false
	}

	k, ok := kindOf(ref, info)
	if !ok {
		l.Errorf(diag.UnknownType, dp.Name, "type %s does not match any parameter kind", dp.Type)
		return Parameter{}, false
	}
	p.Kind = k
	return p, true
}

func kindOf(ref decl.TypeRef, info models.TypeInfo) (Kind, bool) {
	switch ref.Wrapper {
	case decl.RefRO:
		return ReadOnlyRef, true
	case decl.RefRW:
		return ReadWriteRef, true
	case decl.EnabledRefRO:
		return EnabledReadRef, true
	case decl.EnabledRefRW:
		return EnabledWriteRef, true
	case decl.DynamicBuffer:
		return Buffer, true
	}

	switch info.Kind {
	case models.KindComponent:
		return ValueComponent, true
	case models.KindTag:
		return TagComponent, true
	case models.KindBufferElement:
		return Buffer, true
	case models.KindShared:
		return SharedComponent, true
	case models.KindManaged:
		return ManagedComponent, true
	case models.KindAspect:
		return Aspect, true
	case models.KindEntity:
		return Entity, true
	case models.KindInt:
		return PositionalIndex, true
	default:
		return 0, false
	}
}

func classifyValue(p *Parameter, _ *diag.List) {
	p.ReadOnly = p.Ref != decl.Ref
	p.Enableable = p.Info.Enableable
}

func classifyTag(p *Parameter, l *diag.List) {
	if p.Ref == decl.Ref {
		l.Errorf(diag.RefOnTag, p.Name, "tag component %s has no data to pass by ref", p.Info.Name)
		return
	}
	p.ReadOnly = true
	p.Enableable = p.Info.Enableable
}

func classifyRef(p *Parameter, l *diag.List) {
	if p.Ref != decl.ByValue {
		l.Errorf(diag.RefOnWrapper, p.Name, "%s already encodes mutability, remove %s", p.Type, p.Ref)
		return
	}
	if p.Info.Kind != models.KindComponent {
		l.Errorf(diag.WrapperNeedsComponent, p.Name, "%s needs a plain component, %s is a %s", p.Type.Wrapper, p.Info.Name, p.Info.Kind)
		return
	}
	p.ReadOnly = p.Kind == ReadOnlyRef
	p.Enableable = p.Info.Enableable
}

func classifyEnabledRef(p *Parameter, l *diag.List) {
	if p.Ref != decl.ByValue {
		l.Errorf(diag.RefOnWrapper, p.Name, "%s already encodes mutability, remove %s", p.Type, p.Ref)
		return
	}
	if p.Info.Kind != models.KindComponent && p.Info.Kind != models.KindTag {
		l.Errorf(diag.WrapperNeedsComponent, p.Name, "%s needs a component, %s is a %s", p.Type.Wrapper, p.Info.Name, p.Info.Kind)
		return
	}
	if !p.Info.Enableable {
		l.Errorf(diag.EnabledRefNeedsEnable, p.Name, "%s needs an enableable component, %s is not", p.Type.Wrapper, p.Info.Name)
		return
	}
	p.ReadOnly = p.Kind == EnabledReadRef
	p.Enableable = true
}

// Buffers are read-write by value and read-only with in.
func classifyBuffer(p *Parameter, l *diag.List) {
	if p.Type.Wrapper == decl.NoWrapper {
		l.Errorf(diag.UnwrappedBufferElement, p.Name, "buffer element %s must be accessed as DynamicBuffer[%s]", p.Info.Name, p.Info.Name)
		return
	}
	if p.Info.Kind != models.KindBufferElement {
		l.Errorf(diag.BufferNeedsElement, p.Name, "DynamicBuffer needs a buffer element type, %s is a %s", p.Info.Name, p.Info.Kind)
		return
	}
	if p.Ref == decl.Ref {
		l.Errorf(diag.RefOnWrapper, p.Name, "%s cannot be passed by ref", p.Type)
		return
	}
	p.ReadOnly = p.Ref == decl.In
	p.Enableable = p.Info.Enableable
}

func classifyShared(p *Parameter, l *diag.List) {
	if p.Ref == decl.Ref {
		l.Errorf(diag.RefOnShared, p.Name, "shared component %s is read-only and cannot be passed by ref", p.Info.Name)
		return
	}
	p.ReadOnly = true
}

func classifyManaged(p *Parameter, l *diag.List) {
	if p.Ref != decl.ByValue {
		l.Errorf(diag.RefOnManaged, p.Name, "managed component %s cannot be passed with %s", p.Info.Name, p.Ref)
		return
	}
	p.Enableable = p.Info.Enableable
}

func classifyAspect(p *Parameter, l *diag.List) {
	if p.Ref != decl.ByValue {
		l.Errorf(diag.RefOnAspect, p.Name, "aspect %s cannot be passed with %s", p.Info.Name, p.Ref)
		return
	}
	p.ReadOnly = true
	for _, r := range p.Info.Requires {
		p.ReadOnly = p.ReadOnly && r.ReadOnly
	}
}

func classifyEntity(p *Parameter, l *diag.List) {
	if p.Ref == decl.Ref {
		l.Errorf(diag.RefOnEntity, p.Name, "entity cannot be passed by ref")
		return
	}
	p.ReadOnly = true
}

func classifyIndex(p *Parameter, l *diag.List) {
	if p.Index == decl.NoIndex {
		l.Errorf(diag.UnknownType, p.Name, "int parameter needs an index attribute")
		return
	}
	if p.Ref != decl.ByValue {
		l.Errorf(diag.IndexNotInt, p.Name, "index parameter cannot be passed with %s", p.Ref)
		return
	}
	p.ReadOnly = true
}
