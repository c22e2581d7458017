package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/lysyi3m/badge-comb/app/bookmark"
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/lists"
	"github.com/lysyi3m/badge-comb/app/page"
	"github.com/lysyi3m/badge-comb/app/store"
)

const (
	MinInterval = 10 * time.Second

	triggerQueueSize = 16
)

// StartupDelays are the two staggered runs fired after Start, covering pages
// that render their sidebar late.
var StartupDelays = []time.Duration{1 * time.Second, 3 * time.Second}

type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerLoad     Trigger = "load"
	TriggerReady    Trigger = "ready"
	TriggerNavigate Trigger = "navigate"
	TriggerMutation Trigger = "mutation"
	TriggerManual   Trigger = "manual"
)

// State is the scheduler's process-wide state. It is created with the
// scheduler, changed only by the run entry point and never reset.
type State struct {
	mu          sync.Mutex
	lastRun     time.Time
	minInterval time.Duration
	runs        int
}

type Status struct {
	LastRun     time.Time
	Runs        int
	MinInterval time.Duration
	NextAllowed time.Time
}

type Report struct {
	ID         string
	Trigger    Trigger
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
	Updated    int
	Skipped    int
}

type plan struct {
	id        string
	trigger   Trigger
	startedAt time.Time
	location  string
	lists     []lists.Descriptor
}

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	tab            *dom.Tab
	adapter        *page.Adapter
	scanner        *lists.Scanner
	counter        *bookmark.Counter
	fetcher        ListFetcher
	repo           store.Repository
	reloadInterval time.Duration
	startupDelays  []time.Duration
	state          *State
	clock          func() time.Time
	mutations      <-chan dom.Mutation
	triggers       chan Trigger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	inFlight       sync.WaitGroup
}

func NewScheduler(tab *dom.Tab, adapter *page.Adapter, scanner *lists.Scanner, counter *bookmark.Counter,
	fetcher ListFetcher, repo store.Repository, reloadInterval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		tab:            tab,
		adapter:        adapter,
		scanner:        scanner,
		counter:        counter,
		fetcher:        fetcher,
		repo:           repo,
		reloadInterval: reloadInterval,
		startupDelays:  StartupDelays,
		state:          &State{minInterval: MinInterval},
		clock:          time.Now,
		mutations:      tab.Observe(adapter.IsLandmark),
		triggers:       make(chan Trigger, triggerQueueSize),
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-s.ctx.Done():
				return
			case trigger := <-s.triggers:
				s.dispatch(trigger)
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-s.ctx.Done():
				return
			case m := <-s.mutations:
				if trigger, ok := triggerFor(m); ok {
					s.request(trigger)
				}
			}
		}
	}()

	for _, delay := range s.startupDelays {
		s.wg.Add(1)
		go func(delay time.Duration) {
			defer s.wg.Done()

			timer := time.NewTimer(delay)
			defer timer.Stop()

			select {
			case <-s.ctx.Done():
			case <-timer.C:
				s.request(TriggerStartup)
			}
		}(delay)
	}

	if s.reloadInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			ticker := time.NewTicker(s.reloadInterval)
			defer ticker.Stop()

			for {
				select {
				case <-s.ctx.Done():
					return
				case <-ticker.C:
					if err := s.tab.Reload(s.ctx); err != nil {
						slog.Warn("Failed to reload page", "error", err)
					}
				}
			}
		}()
	}
}

// Stop cancels triggers and in-flight fetches, then waits for running work.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.inFlight.Wait()
}

// Request queues a trigger for the run loop. It never blocks; a full queue
// drops the trigger, which the cooldown would have suppressed anyway.
func (s *Scheduler) Request(trigger Trigger) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.triggers <- trigger:
		return nil
	default:
		return fmt.Errorf("trigger queue is full")
	}
}

func (s *Scheduler) request(trigger Trigger) {
	if err := s.Request(trigger); err != nil {
		slog.Debug("Trigger dropped", "trigger", trigger, "error", err)
	}
}

func (s *Scheduler) Status() Status {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	status := Status{
		LastRun:     s.state.lastRun,
		Runs:        s.state.runs,
		MinInterval: s.state.minInterval,
	}
	if !s.state.lastRun.IsZero() {
		status.NextAllowed = s.state.lastRun.Add(s.state.minInterval)
	}
	return status
}

// Run is the gated entry point executed synchronously. It reports false when
// the run was suppressed by the cooldown or because the page is not ready.
// The report is nil if the run panicked.
func (s *Scheduler) Run(ctx context.Context, trigger Trigger) (*Report, bool) {
	p, ok := s.admit(trigger)
	if !ok {
		return nil, false
	}
	return s.execute(ctx, p), true
}

// dispatch admits a run on the loop goroutine and lets it finish on its own,
// so a slow fetch never holds up the gating of later triggers.
func (s *Scheduler) dispatch(trigger Trigger) {
	p, ok := s.admit(trigger)
	if !ok {
		return
	}

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		s.execute(s.ctx, p)
	}()
}

// admit applies the cooldown and readiness checks and arms the cooldown when
// the run may proceed. The first run is never gated.
func (s *Scheduler) admit(trigger Trigger) (*plan, bool) {
	now := s.clock()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if !s.state.lastRun.IsZero() && now.Sub(s.state.lastRun) < s.state.minInterval {
		slog.Debug("Run suppressed by cooldown", "trigger", trigger, "since_last", now.Sub(s.state.lastRun))
		return nil, false
	}

	var found []lists.Descriptor
	var location string
	loaded := s.tab.Read(func(doc *dom.Document) {
		found = s.scanner.Run(doc)
		if doc.URL() != nil {
			location = doc.URL().Path
		}
	})
	if !loaded || len(found) == 0 {
		slog.Debug("Page not ready, run skipped", "trigger", trigger, "loaded", loaded)
		return nil, false
	}

	s.state.lastRun = now
	s.state.runs++

	return &plan{
		id:        uuid.NewString(),
		trigger:   trigger,
		startedAt: now,
		location:  location,
		lists:     found,
	}, true
}

func (s *Scheduler) execute(ctx context.Context, p *plan) (report *Report) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Run failed", "id", p.id, "trigger", p.trigger, "panic", r)
			report = nil
		}
	}()

	results := make([]Result, len(p.lists))
	var wg conc.WaitGroup
	for i, list := range p.lists {
		source := SourceRemote
		if s.adapter.IsCurrentList(p.location, list.ID) {
			source = SourceLive
		}

		task := NewReconcileListTask(list, source, s.tab, s.counter, s.fetcher)
		results[i] = task.Result

		wg.Go(func() {
			if err := s.executeTask(ctx, task); err == nil {
				slog.Debug("List count resolved",
					"list", task.List.ID,
					"source", task.Source,
					"displayed", task.Result.PreviousCount,
					"resolved", task.Result.NewCount)
			}
			results[i] = task.Result
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		slog.Error("List task panicked", "id", p.id, "panic", recovered.Value)
	}

	report = &Report{
		ID:        p.id,
		Trigger:   p.trigger,
		StartedAt: p.startedAt,
		Results:   results,
	}

	for _, r := range results {
		switch {
		case !r.Known:
			report.Skipped++
		case r.Changed():
			s.tab.SetText(r.List.Handle, strconv.Itoa(r.NewCount))
			report.Updated++
			slog.Info("Badge corrected", "list", r.List.ID, "name", r.List.Name, "from", r.PreviousCount, "to", r.NewCount)
		}
	}

	report.FinishedAt = s.clock()

	slog.Info("Run completed",
		"id", report.ID,
		"trigger", report.Trigger,
		"duration", report.FinishedAt.Sub(report.StartedAt),
		"lists", len(results),
		"updated", report.Updated,
		"skipped", report.Skipped)

	s.record(report)

	return report
}

func (s *Scheduler) executeTask(ctx context.Context, task TaskInterface) error {
	task.Start()

	if err := task.Execute(ctx); err != nil {
		slog.Warn("List count unresolved, badge left unchanged",
			"list", task.GetListID(),
			"type", task.GetType(),
			"duration", task.GetDuration(),
			"error", err)
		return err
	}

	slog.Debug("Task completed",
		"list", task.GetListID(),
		"type", task.GetType(),
		"state", task.GetState(),
		"duration", task.GetDuration())

	return nil
}

func (s *Scheduler) record(report *Report) {
	if s.repo == nil {
		return
	}

	run := store.Run{
		ID:         report.ID,
		Cause:      string(report.Trigger),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Lists:      len(report.Results),
		Updated:    report.Updated,
		Skipped:    report.Skipped,
	}

	counts := make([]store.ListCount, 0, len(report.Results))
	for _, r := range report.Results {
		c := store.ListCount{
			ListID:    r.List.ID,
			Name:      r.List.Name,
			Displayed: r.PreviousCount,
			Source:    string(r.Source),
			CheckedAt: report.FinishedAt,
		}

		switch {
		case !r.Known:
			c.Status = store.ListStatusSkipped
		case r.Changed():
			c.Status = store.ListStatusReconciled
			changedAt := report.FinishedAt
			c.ChangedAt = &changedAt
		default:
			c.Status = store.ListStatusUnchanged
		}
		if r.Known {
			resolved := r.NewCount
			c.Resolved = &resolved
		}

		counts = append(counts, c)
	}

	if err := s.repo.RecordRun(run, counts); err != nil {
		slog.Error("Failed to record run", "id", report.ID, "error", err)
	}
}

func triggerFor(m dom.Mutation) (Trigger, bool) {
	switch m.Kind {
	case dom.MutationNavigate:
		return TriggerNavigate, true
	case dom.MutationReady:
		return TriggerReady, true
	case dom.MutationLoad:
		return TriggerLoad, true
	case dom.MutationChildList:
		return TriggerMutation, m.Landmark
	}
	return "", false
}
