// Package events carries the generator's pipeline progress over the in-process bus.
package events

import (
	"sync"
	"time"

	"github.com/zeusync/ecsgen/internal/core/events/bus"
)

// Stage names one step of the per-site pipeline. Stage values are the event types
// published on the bus.
type Stage string

const (
	StageClassify Stage = "classify"
	StageQuery    Stage = "query"
	StageHandles  Stage = "handles"
	StageResolver Stage = "resolver"
	StageSchedule Stage = "schedule"
	StageEmit     Stage = "emit"
	// StageDone is published once per site after the last stage.
	StageDone Stage = "done"
	// StageCached replaces every other stage for a site served from the cache.
	StageCached Stage = "cached"
)

// Report is the payload of every pipeline event.
type Report struct {
	Site     string
	Stage    Stage
	Duration time.Duration
	// Diagnostics counts the diagnostics raised by the stage.
	Diagnostics int
	Err         error
}

// Publish sends r on b. A nil bus is ignored.
func Publish(b bus.EventBus, r Report) error {
	if b == nil {
		return nil
	}
	return b.Publish(bus.NewEvent(string(r.Stage), r.Site, r))
}

// ReportOf extracts the report of a pipeline event.
func ReportOf(e bus.Event) (Report, bool) {
	r, ok := e.Data().(Report)
	return r, ok
}

// Recorder collects every report published on a bus.
type Recorder struct {
	sub     bus.Subscription
	mu      sync.Mutex
	reports []Report
}

// Record subscribes a recorder to every event of b.
func Record(b bus.EventBus) (*Recorder, error) {
	r := &Recorder{}
	sub, err := b.Subscribe(bus.AllEvents, func(e bus.Event) error {
		if rep, ok := ReportOf(e); ok {
			r.mu.Lock()
			r.reports = append(r.reports, rep)
			r.mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

// Reports returns a copy of the reports recorded so far.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.reports...)
}

// Stop unsubscribes the recorder.
func (r *Recorder) Stop() error { return r.sub.Cancel() }

// New is the bus provider.
func New() bus.EventBus { return bus.New() }
