package ecs

import "sync"

// SystemState is the execution context generated code runs against: the type
// registry, the query provider, the dependency tracker and the system versions used
// by change filters.
//
// A SystemState is used by one goroutine at a time. Jobs scheduled from it only read
// the values captured when they were scheduled.
type SystemState struct {
	Name         string
	Types        *TypeRegistry
	Queries      QueryProvider
	Dependencies DependencyManager

	// SafetyChecks enables the runtime check that a caller-supplied query guarantees
	// every component a declaration requires.
	SafetyChecks bool
	// Workers bounds ScheduleParallel fan-out. Zero means GOMAXPROCS.
	Workers int

	globalSystemVersion uint32
	lastSystemVersion   uint32

	handles sync.Map
}

func NewSystemState(name string, types *TypeRegistry, queries QueryProvider, deps DependencyManager) *SystemState {
	if types == nil {
		types = NewTypeRegistry()
	}
	return &SystemState{
		Name:         name,
		Types:        types,
		Queries:      queries,
		Dependencies: deps,
		SafetyChecks: true,
	}
}

// BeginUpdate starts a new system update at the given global version. The previous
// version becomes the last system version change filters compare against.
func (s *SystemState) BeginUpdate(version uint32) {
	s.lastSystemVersion = s.globalSystemVersion
	s.globalSystemVersion = version
}

func (s *SystemState) GlobalSystemVersion() uint32 { return s.globalSystemVersion }

func (s *SystemState) LastSystemVersion() uint32 { return s.lastSystemVersion }

// CachedHandle returns the handle cached under key, creating it on first use.
// Generated code keeps one handle per declaration per system.
func CachedHandle[H any](s *SystemState, key string, create func(*SystemState) H) *H {
	if v, ok := s.handles.Load(key); ok {
		return v.(*H)
	}
	h := create(s)
	v, _ := s.handles.LoadOrStore(key, &h)
	return v.(*H)
}

// CompleteDependencies blocks until every job touching the given types finished.
func (s *SystemState) CompleteDependencies(types []ComponentType) error {
	if s.Dependencies == nil {
		return nil
	}
	return s.Dependencies.CompleteDependencies(types)
}

// AddDependency registers h as the latest job touching the given types.
func (s *SystemState) AddDependency(types []ComponentType, h JobHandle) {
	if s.Dependencies == nil {
		return
	}
	s.Dependencies.AddDependency(types, h)
}

// DependencyFor returns a handle combining the outstanding jobs a new job touching
// types has to wait for.
func (s *SystemState) DependencyFor(types []ComponentType) JobHandle {
	if s.Dependencies == nil {
		return JobHandle{}
	}
	return s.Dependencies.DependencyFor(types)
}
