// Package generator runs the per-site pipeline over a declaration file and
// assembles the generated source.
package generator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/ecsgen/internal/codegen/classify"
	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/diag"
	"github.com/zeusync/ecsgen/internal/codegen/emit"
	"github.com/zeusync/ecsgen/internal/codegen/handles"
	"github.com/zeusync/ecsgen/internal/codegen/query"
	"github.com/zeusync/ecsgen/internal/codegen/resolver"
	"github.com/zeusync/ecsgen/internal/codegen/schedule"
	"github.com/zeusync/ecsgen/internal/config"
	"github.com/zeusync/ecsgen/internal/core/events"
	"github.com/zeusync/ecsgen/internal/core/events/bus"
	"github.com/zeusync/ecsgen/internal/core/models"
	"github.com/zeusync/ecsgen/internal/core/observability/log"
	"github.com/zeusync/ecsgen/pkg/concurrent"
)

var ErrSiteFailed = errors.New("declaration site failed")

// Site is the outcome of one declaration.
type Site struct {
	Name        string
	Fragments   []emit.Fragment
	Diagnostics []diag.Diagnostic
	// Qualifiers are the import aliases the fragments reference, besides the runtime.
	Qualifiers []string
	Cached     bool
	Err        error
}

func (s Site) Failed() bool { return s.Err != nil }

// Result is the outcome of one file. Source is nil for Check.
type Result struct {
	Package     string
	Source      []byte
	Sites       []Site
	Diagnostics []diag.Diagnostic
}

// Err joins the errors of every failed site.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Sites {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// Failed returns the names of the failed sites.
func (r *Result) Failed() []string {
	var names []string
	for _, s := range r.Sites {
		if s.Failed() {
			names = append(names, s.Name)
		}
	}
	return names
}

type Generator struct {
	cfg    *config.Config
	logger log.Log
	bus    bus.EventBus

	mu    sync.Mutex
	cache map[uint64]Site
}

func New(cfg *config.Config, logger log.Log, b bus.EventBus) *Generator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Generator{
		cfg:    cfg,
		logger: logger.Named("generator"),
		bus:    b,
		cache:  make(map[uint64]Site),
	}
}

// CacheLen returns the number of cached sites.
func (g *Generator) CacheLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

// Check analyses every site of f without assembling a file.
func (g *Generator) Check(ctx context.Context, f *decl.File) (*Result, error) {
	pkg := g.packageOf(f)
	u := f.Universe()
	sites, err := concurrent.ParallelMap(ctx, f.Declarations, g.cfg.Generator.Parallelism,
		func(ctx context.Context, d decl.Declaration) (Site, error) {
			if err := ctx.Err(); err != nil {
				return Site{}, err
			}
			return g.site(pkg, d, u), nil
		})
	if err != nil {
		return nil, err
	}

	res := &Result{Package: pkg, Sites: sites}
	for _, s := range sites {
		res.Diagnostics = append(res.Diagnostics, s.Diagnostics...)
	}
	diag.Sort(res.Diagnostics)
	return res, nil
}

// Generate analyses every site of f and renders the code of the sites that
// succeeded into one file. Failed sites are reported in the result and emit nothing.
func (g *Generator) Generate(ctx context.Context, f *decl.File) (*Result, error) {
	res, err := g.Check(ctx, f)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	src, err := g.assemble(f, res)
	g.report(events.Report{Site: res.Package, Stage: events.StageEmit, Duration: time.Since(start), Err: err})
	if err != nil {
		return nil, err
	}
	res.Source = src
	return res, nil
}

func (g *Generator) packageOf(f *decl.File) string {
	if g.cfg.Generator.Package != "" {
		return g.cfg.Generator.Package
	}
	return f.Package
}

func (g *Generator) runtimeOf(f *decl.File) string {
	if f.Runtime != "" {
		return f.Runtime
	}
	return g.cfg.Generator.Runtime
}

func (g *Generator) assemble(f *decl.File, res *Result) ([]byte, error) {
	unit := emit.NewUnit(res.Package)
	for _, s := range res.Sites {
		if s.Failed() {
			continue
		}
		if err := unit.Import(emit.RuntimeAlias, g.runtimeOf(f)); err != nil {
			return nil, err
		}
		for _, q := range s.Qualifiers {
			path, ok := f.Imports[q]
			if !ok {
				g.logger.Warn("qualifier has no import", log.Site(s.Name), log.String("qualifier", q))
				continue
			}
			if err := unit.Import(q, path); err != nil {
				return nil, err
			}
		}
		unit.Add(s.Fragments...)
	}
	return unit.Source(res.Package + "_gen.go")
}

func cacheKey(pkg string, universe uint64, d decl.Declaration) (uint64, error) {
	canonical, err := d.Canonical()
	if err != nil {
		return 0, err
	}
	h := xxhash.New()
	_, _ = fmt.Fprintf(h, "%s\x00%016x\x00", pkg, universe)
	_, _ = h.Write(canonical)
	return h.Sum64(), nil
}

func (g *Generator) site(pkg string, d decl.Declaration, u *models.Universe) Site {
	var key uint64
	if g.cfg.Generator.Cache {
		k, err := cacheKey(pkg, u.Hash(), d)
		if err == nil {
			key = k
			g.mu.Lock()
			cached, ok := g.cache[key]
			g.mu.Unlock()
			if ok {
				g.logger.Debug("cache hit", log.Site(d.Name))
				g.report(events.Report{Site: d.Name, Stage: events.StageCached, Diagnostics: len(cached.Diagnostics), Err: cached.Err})
				cached.Cached = true
				return cached
			}
		}
	}

	s := g.run(pkg, d, u)
	g.logDiagnostics(s.Diagnostics)
	g.report(events.Report{Site: d.Name, Stage: events.StageDone, Diagnostics: len(s.Diagnostics), Err: s.Err})

	if key != 0 {
		g.mu.Lock()
		g.cache[key] = s
		g.mu.Unlock()
	}
	return s
}

// run is the pipeline of one site. Classification and query construction both run
// so that every diagnostic of the site is reported together.
func (g *Generator) run(pkg string, d decl.Declaration, u *models.Universe) Site {
	s := Site{Name: d.Name}
	l := diag.NewList(d.Name)

	var params []classify.Parameter
	_ = g.stage(d.Name, events.StageClassify, func() (int, error) {
		sl := classify.CheckStructure(d)
		var cl *diag.List
		params, cl = classify.Classify(d, u)
		sl.Merge(cl)
		l.Merge(sl)
		return sl.Len(), sl.Err()
	})

	var desc query.Descriptor
	_ = g.stage(d.Name, events.StageQuery, func() (int, error) {
		var ql *diag.List
		desc, ql = query.FromDeclaration(d, params, u).Build()
		l.Merge(ql)
		return ql.Len(), ql.Err()
	})

	s.Diagnostics = l.All()
	if l.HasErrors() {
		s.Err = fmt.Errorf("%w: %s: %w", ErrSiteFailed, d.Name, l.Err())
		return s
	}

	var (
		reg   *handles.Registry
		shape resolver.Shape
	)
	err := g.stage(d.Name, events.StageHandles, func() (int, error) {
		reg = handles.Plan(params, desc)
		f, err := handles.Emit(d.Name, reg)
		s.Fragments = append(s.Fragments, f)
		return 0, err
	})
	if err == nil {
		err = g.stage(d.Name, events.StageResolver, func() (int, error) {
			var err error
			if shape, err = resolver.Plan(d.Name, params, desc, reg); err != nil {
				return 0, err
			}
			f, err := resolver.Emit(shape)
			s.Fragments = append(s.Fragments, f)
			return 0, err
		})
	}
	if err == nil {
		err = g.stage(d.Name, events.StageSchedule, func() (int, error) {
			f, err := schedule.Emit(schedule.NewPlan(pkg, d.Name, params, desc))
			s.Fragments = append(s.Fragments, f)
			return 0, err
		})
	}
	if err != nil {
		s.Fragments = nil
		s.Err = fmt.Errorf("%w: %s: %w", ErrSiteFailed, d.Name, err)
		return s
	}

	s.Qualifiers = qualifiers(params, desc)
	return s
}

// qualifiers collects the import aliases of every type the site's code spells.
func qualifiers(params []classify.Parameter, desc query.Descriptor) []string {
	var out []string
	add := func(t models.TypeInfo) {
		if q := t.Qualifier(); q != "" && q != emit.RuntimeAlias && !slices.Contains(out, q) {
			out = append(out, q)
		}
	}
	for _, p := range params {
		add(p.Info)
	}
	for _, m := range query.Memberships {
		for _, q := range desc.Set(m) {
			add(q.Type)
		}
	}
	for _, t := range desc.ChangeFilter {
		add(t)
	}
	for _, t := range desc.SharedFilter {
		add(t)
	}
	slices.Sort(out)
	return out
}

func (g *Generator) stage(site string, stage events.Stage, fn func() (int, error)) error {
	start := time.Now()
	n, err := fn()
	took := time.Since(start)

	g.logger.Debug("stage finished",
		log.Site(site),
		log.Stage(string(stage)),
		log.Duration("took", took),
		log.Int("diagnostics", n),
	)
	g.report(events.Report{Site: site, Stage: stage, Duration: took, Diagnostics: n, Err: err})
	return err
}

func (g *Generator) report(r events.Report) {
	if err := events.Publish(g.bus, r); err != nil {
		g.logger.Warn("stage observer failed", log.Site(r.Site), log.Stage(string(r.Stage)), log.Error(err))
	}
}

func (g *Generator) logDiagnostics(ds []diag.Diagnostic) {
	for _, d := range ds {
		fields := []log.Field{log.Site(d.Site), log.Code(string(d.Code))}
		if d.Param != "" {
			fields = append(fields, log.String("param", d.Param))
		}
		if d.Severity == diag.Error {
			g.logger.Error(d.Message, fields...)
		} else {
			g.logger.Warn(d.Message, fields...)
		}
	}
}
