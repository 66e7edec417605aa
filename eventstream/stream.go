// Package eventstream lets callers observe a workflow run as it
// happens: one callback when a step starts and one when it finishes, plus a bounded in-memory
// history so a late subscriber can catch up (SPEC_FULL.md §3.1,
// supplemented from the original implementation's println!-based step
// trace). The topic-naming and nil-safe-when-unwired shape is adapted
// from the teacher's module.WorkflowEventEmitter / module.EventBusBridge.
package eventstream

import (
	"sort"
	"sync"
	"time"

	"github.com/GoCodeAlone/lao-engine/execengine"
)

// Lifecycle is the phase a published Event describes.
type Lifecycle string

const (
	LifecycleStepStarted   Lifecycle = "started"
	LifecycleStepCompleted Lifecycle = "completed"
	LifecycleStepFailed    Lifecycle = "failed"
)

// Event is one notification published to a Stream.
type Event struct {
	WorkflowID string
	Lifecycle  Lifecycle
	Log        execengine.StepLog
	Timestamp  time.Time
}

// WorkflowTopic returns the event bus topic naming convention for a
// workflow-level event: "workflow.<id>.<lifecycle>".
func WorkflowTopic(workflowID string, lifecycle Lifecycle) string {
	return "workflow." + workflowID + "." + string(lifecycle)
}

// StepTopic returns the topic for a step-level event:
// "workflow.<id>.step.<nodeID>.<lifecycle>".
func StepTopic(workflowID, nodeID string, lifecycle Lifecycle) string {
	return "workflow." + workflowID + ".step." + nodeID + "." + string(lifecycle)
}

// Stream fans a workflow run's events out to subscribers and keeps a
// bounded ring-buffer history.
type Stream struct {
	mu          sync.Mutex
	subscribers map[int]func(Event)
	nextID      int
	history     []Event
	maxHistory  int
}

// NewStream builds a Stream retaining up to maxHistory past events (0 means
// unbounded history is disabled — no events are retained).
func NewStream(maxHistory int) *Stream {
	return &Stream{subscribers: make(map[int]func(Event)), maxHistory: maxHistory}
}

// Subscribe registers fn to be called, synchronously, for every future
// Publish. It returns an unsubscribe function.
func (s *Stream) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Publish dispatches ev to every current subscriber, in registration
// order, and appends it to history. Dispatch is synchronous: a workflow
// run using sequential execution delivers events in step order, and one
// using parallel execution delivers them in completion order.
func (s *Stream) Publish(ev Event) {
	s.mu.Lock()
	if s.maxHistory > 0 {
		s.history = append(s.history, ev)
		if len(s.history) > s.maxHistory {
			s.history = s.history[len(s.history)-s.maxHistory:]
		}
	}
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Recent returns a copy of the retained event history, oldest first.
func (s *Stream) Recent() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.history))
	copy(out, s.history)
	return out
}

// StartSink returns an execengine.EventSink for the engine's OnStepStart
// hook, publishing a StepStarted event as each step begins executing. A
// cached step never starts, so it produces no started event — only the
// completed one from StepSink.
func (s *Stream) StartSink(workflowID string) execengine.EventSink {
	return func(log execengine.StepLog) {
		s.Publish(Event{WorkflowID: workflowID, Lifecycle: LifecycleStepStarted, Log: log, Timestamp: time.Now()})
	}
}

// StepSink returns an execengine.EventSink that publishes a StepCompleted
// (or StepFailed) event for every StepLog the engine produces.
func (s *Stream) StepSink(workflowID string) execengine.EventSink {
	return func(log execengine.StepLog) {
		lifecycle := LifecycleStepCompleted
		if log.HasErr {
			lifecycle = LifecycleStepFailed
		}
		s.Publish(Event{WorkflowID: workflowID, Lifecycle: lifecycle, Log: log, Timestamp: time.Now()})
	}
}
