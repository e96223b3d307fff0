// Package scheduler runs catalog workflows on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ibmi-agents/db2i-go/domain/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

var (
	// ErrUnknownSchedule is returned by RunNow for a name that is not loaded.
	ErrUnknownSchedule = errors.New("unknown schedule")

	// ErrAlreadyRunning is returned when a schedule's previous run has not finished.
	ErrAlreadyRunning = errors.New("schedule is already running")
)

// RunFunc executes the named workflow.
type RunFunc func(ctx context.Context, workflow string) error

// ParseCron validates a standard five-field cron expression.
func ParseCron(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// Entry describes a loaded schedule.
type Entry struct {
	Name     string
	Workflow string
	Cron     string
	Next     time.Time
}

type job struct {
	schedule config.Schedule
	id       cron.EntryID
}

// Scheduler owns a cron engine whose entries are replaced as a whole
// each time the catalog is loaded.
type Scheduler struct {
	mu      sync.Mutex
	engine  *cron.Cron
	jobs    map[string]job
	running map[string]bool
	run     RunFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the scheduler.
type Option func(*options)

type options struct {
	location *time.Location
}

// WithLocation evaluates cron expressions in loc instead of local time.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// New creates a scheduler that calls run for each firing.
func New(run RunFunc, opts ...Option) *Scheduler {
	o := options{location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		engine:  cron.New(cron.WithLocation(o.location)),
		jobs:    make(map[string]job),
		running: make(map[string]bool),
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load replaces the loaded schedules. Disabled schedules are skipped.
// Invalid entries are reported together; valid ones are still loaded.
func (s *Scheduler) Load(schedules []config.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, j := range s.jobs {
		s.engine.Remove(j.id)
		delete(s.jobs, name)
	}

	var errs []error
	for _, sc := range schedules {
		if sc.Disabled {
			continue
		}
		if _, dup := s.jobs[sc.Name]; dup {
			errs = append(errs, fmt.Errorf("schedule %s: duplicate name", sc.Name))
			continue
		}
		name := sc.Name
		id, err := s.engine.AddFunc(sc.Cron, func() {
			if err := s.RunNow(s.ctx, name); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				logging.Error().Add(logging.Str("schedule", name)).Add(logging.ErrorField(err)).Msg("scheduled workflow failed")
			}
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", sc.Name, err))
			continue
		}
		s.jobs[sc.Name] = job{schedule: sc, id: id}
	}

	logging.Info().Add(logging.Int("schedules", len(s.jobs))).Msg("schedules loaded")
	return errors.Join(errs...)
}

// RunNow runs a loaded schedule immediately. A schedule never overlaps
// with itself: a firing while the previous run is active is skipped.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	if s.running[name] {
		s.mu.Unlock()
		logging.Warn().Add(logging.Str("schedule", name)).Msg("previous run still active, skipping")
		return ErrAlreadyRunning
	}
	s.running[name] = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
		s.wg.Done()
	}()

	if timeout := j.schedule.Timeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	logging.Info().
		Add(logging.Str("schedule", name)).
		Add(logging.Workflow(j.schedule.Workflow)).
		Msg("scheduled workflow started")

	err := s.run(ctx, j.schedule.Workflow)

	logging.Info().
		Add(logging.Str("schedule", name)).
		Add(logging.Workflow(j.schedule.Workflow)).
		Add(logging.Duration(time.Since(start))).
		Add(logging.Str("status", status(err))).
		Msg("scheduled workflow finished")
	return err
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "completed"
}

// Entries lists loaded schedules by name with their next firing time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.jobs))
	for name, j := range s.jobs {
		out = append(out, Entry{
			Name:     name,
			Workflow: j.schedule.Workflow,
			Cron:     j.schedule.Cron,
			Next:     s.engine.Entry(j.id).Next,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.engine.Start()
}

// Stop stops the engine, cancels running workflows and waits for them.
func (s *Scheduler) Stop() {
	<-s.engine.Stop().Done()
	s.cancel()
	s.wg.Wait()
}
