package ecs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/ecsgen/pkg/concurrent"
)

type job struct {
	id   uuid.UUID
	done chan struct{}
	err  error
}

// JobHandle is the dependency token of a scheduled job. The zero value is a
// completed job without error.
type JobHandle struct {
	job *job
}

func newJob() *job {
	return &job{id: uuid.New(), done: make(chan struct{})}
}

// ID returns uuid.Nil for the zero handle.
func (h JobHandle) ID() uuid.UUID {
	if h.job == nil {
		return uuid.Nil
	}
	return h.job.id
}

func (h JobHandle) IsCompleted() bool {
	if h.job == nil {
		return true
	}
	select {
	case <-h.job.done:
		return true
	default:
		return false
	}
}

// Complete blocks until the job finished and returns its error.
func (h JobHandle) Complete() error {
	if h.job == nil {
		return nil
	}
	<-h.job.done
	return h.job.err
}

// Done is closed when the job finished.
func (h JobHandle) Done() <-chan struct{} {
	if h.job == nil {
		return closedChan
	}
	return h.job.done
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// CombineDependencies returns a handle completing after all handles completed. Its
// error joins the errors of the combined jobs.
func CombineDependencies(handles ...JobHandle) JobHandle {
	pending := make([]JobHandle, 0, len(handles))
	for _, h := range handles {
		if h.job != nil {
			pending = append(pending, h)
		}
	}
	switch len(pending) {
	case 0:
		return JobHandle{}
	case 1:
		return pending[0]
	}

	j := newJob()
	go func() {
		defer close(j.done)
		errs := make([]error, 0, len(pending))
		for _, h := range pending {
			errs = append(errs, h.Complete())
		}
		j.err = errors.Join(errs...)
	}()
	return JobHandle{job: j}
}

// Schedule runs fn on one goroutine after dependsOn completed. A failed dependency
// fails the job without running fn.
func Schedule(dependsOn JobHandle, fn func() error) JobHandle {
	j := newJob()
	go func() {
		defer close(j.done)
		if err := dependsOn.Complete(); err != nil {
			j.err = fmt.Errorf("%w: %w", ErrDependencyFailed, err)
			return
		}
		j.err = guard(fn)
	}()
	return JobHandle{job: j}
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return fn()
}

// ParallelOptions control the split of ScheduleParallel.
type ParallelOptions struct {
	// Workers bounds the number of goroutines. Zero means GOMAXPROCS.
	Workers int
	// ChunksPerTask is the number of whole chunks handed to one task. Zero means one.
	ChunksPerTask int
	// EntityIndices precomputes the base entity index of every chunk range.
	EntityIndices bool
}

// ScheduleParallel runs fn for every chunk range of query once dependsOn
// completed, splitting the ranges across goroutines by whole chunks. Base entity
// indices are computed before the split when requested, zero otherwise.
func ScheduleParallel(dependsOn JobHandle, query Query, opts ParallelOptions, fn func(r ChunkRange, base int)) JobHandle {
	j := newJob()
	go func() {
		defer close(j.done)
		if err := dependsOn.Complete(); err != nil {
			j.err = fmt.Errorf("%w: %w", ErrDependencyFailed, err)
			return
		}

		ranges := query.Ranges()
		var bases []int
		if opts.EntityIndices {
			bases = CalculateBaseEntityIndices(ranges)
		}
		batches := concurrent.Batches(len(ranges), opts.ChunksPerTask)
		j.err = concurrent.ForEach(context.Background(), batches, opts.Workers, func(_ context.Context, _ int, b [2]int) error {
			return guard(func() error {
				for i := b[0]; i < b[1]; i++ {
					base := 0
					if bases != nil {
						base = bases[i]
					}
					fn(ranges[i], base)
				}
				return nil
			})
		})
	}()
	return JobHandle{job: j}
}

// RunChunks visits ranges sequentially. fn returns the number of entities it
// matched in the range; the running total is the base of the next range.
func RunChunks(ranges []ChunkRange, fn func(r ChunkRange, base int) int) {
	base := 0
	for _, r := range ranges {
		base += fn(r, base)
	}
}

// CompleteForRun waits for dependsOn and every job touching access before a
// synchronous run.
func CompleteForRun(dependsOn JobHandle, access []ComponentType, state *SystemState) error {
	var errs []error
	if err := dependsOn.Complete(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrDependencyFailed, err))
	}
	if err := state.CompleteDependencies(access); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrDependencyFailed, err))
	}
	return errors.Join(errs...)
}
