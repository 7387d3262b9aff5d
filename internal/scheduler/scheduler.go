package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind labels the delayed operations an event can have outstanding.
// At most one task exists per (event id, kind)
type Kind string

const (
	KindPosting    Kind = "posting"
	KindReminder   Kind = "reminder"
	KindCleanup    Kind = "cleanup"
	KindRecurrence Kind = "recurrence"
)

// Kinds lists every task kind, for DisarmAll and for sweeps
var Kinds = []Kind{KindPosting, KindReminder, KindCleanup, KindRecurrence}

type key struct {
	eventID string
	kind    Kind
}

type task struct {
	timer *time.Timer
}

// Scheduler owns the mapping from (event id, kind) to a one-shot timer,
// so arming and disarming cannot drift out of sync across callers.
// Actions run at most once per arm; an action that panics is logged and
// considered complete, never retried
type Scheduler struct {
	mu    sync.Mutex
	tasks map[key]*task
}

func New() *Scheduler {
	return &Scheduler{tasks: map[key]*task{}}
}

// Arm schedules action to run after delay, cancelling and replacing any
// previously armed task for the same (event id, kind)
func (s *Scheduler) Arm(eventID string, kind Kind, delay time.Duration, action func()) {
	if delay < 0 {
		delay = 0
	}
	k := key{eventID, kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[k]; ok {
		existing.timer.Stop()
	}

	t := &task{}
	t.timer = time.AfterFunc(delay, func() {
		s.complete(k, t)
		run(eventID, kind, action)
	})
	s.tasks[k] = t
	log.Debug().Msg(fmt.Sprintf("Armed %s task for event %s in %s", kind, eventID, delay))
}

// Disarm cancels the task of the given kind without replacement.
// Cancellation is cooperative: a task already firing is not interrupted
func (s *Scheduler) Disarm(eventID string, kind Kind) {
	k := key{eventID, kind}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[k]; ok {
		t.timer.Stop()
		delete(s.tasks, k)
	}
}

// DisarmAll cancels every kind for the event, used on delete
func (s *Scheduler) DisarmAll(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range Kinds {
		k := key{eventID, kind}
		if t, ok := s.tasks[k]; ok {
			t.timer.Stop()
			delete(s.tasks, k)
		}
	}
}

// Armed reports whether a task of the given kind is outstanding
func (s *Scheduler) Armed(eventID string, kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key{eventID, kind}]
	return ok
}

// Stop cancels everything, used on shutdown
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, k)
	}
}

// complete removes the table entry when this exact task fires. A newer
// task armed under the same key stays untouched
func (s *Scheduler) complete(k key, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.tasks[k]; ok && current == t {
		delete(s.tasks, k)
	}
}

func run(eventID string, kind Kind, action func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msg(fmt.Sprintf("%s task for event %s panicked: %v", kind, eventID, r))
		}
	}()
	action()
}
