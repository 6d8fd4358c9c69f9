package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Scheduler manages periodic, daily and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	timers  map[string]*time.Timer
	logger  *zap.Logger
	stopCh  chan struct{}
	now     func() time.Time
}

type tickerEntry struct {
	stopCh chan struct{}
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// run calls fn, logging instead of crashing if it panics.
func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	fn()
}

// replace registers entry under name, stopping any task it replaces.
// Caller holds s.mu.
func (s *Scheduler) replace(name string, entry *tickerEntry) {
	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
	}
	s.tickers[name] = entry
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &tickerEntry{stopCh: make(chan struct{})}
	s.replace(name, entry)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(name, fn)
			case <-entry.stopCh:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDaily registers a task that runs once a day at hour:minute local time.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddDaily(name string, hour, minute int, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &tickerEntry{stopCh: make(chan struct{})}
	s.replace(name, entry)

	first := NextDailyRun(s.now(), hour, minute)
	go func() {
		timer := time.NewTimer(first.Sub(s.now()))
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				s.run(name, fn)
				next := NextDailyRun(s.now(), hour, minute)
				timer.Reset(next.Sub(s.now()))
			case <-entry.stopCh:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("scheduler daily task registered",
		zap.String("name", name), zap.Time("first_run", first))
}

// NextDailyRun returns the first hour:minute strictly after now, in now's
// location.
func NextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			if s.timers[name] == t {
				delete(s.timers, name)
			}
			s.mu.Unlock()
		}()
		s.run(name, fn)
	})
	s.timers[name] = t
}

// Remove stops and removes a ticker, daily or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop stops all tasks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
		for _, t := range s.timers {
			t.Stop()
		}
	}
}

// ListTickers returns the sorted names of all registered ticker and daily
// tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
