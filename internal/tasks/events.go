package tasks

import (
	"sync"
	"time"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/progress"
)

// EventKind names a notification published by the [Reporter].
type EventKind string

const (
	EventQueueSize EventKind = "queueSize"
	EventProgress  EventKind = "progress"
	EventFinished  EventKind = "finished"
	EventError     EventKind = "error"
)

// Terminal reports whether the kind ends a task's lifecycle.
func (k EventKind) Terminal() bool {
	return k == EventFinished || k == EventError
}

// ProgressEvent carries one sample from an active pipeline.
type ProgressEvent struct {
	TaskID     string          `json:"taskId"`
	ResourceID string          `json:"videoId"`
	Sample     progress.Sample `json:"progress"`
}

// Event is the channel form of every notification.
//
// Exactly one of QueueSize, Progress, Result or Err is meaningful, depending on Kind.
// Error events may carry Partial data known before the failure.
type Event struct {
	Kind       EventKind          `json:"kind"`
	At         time.Time          `json:"at"`
	TaskID     string             `json:"taskId,omitempty"`
	ResourceID string             `json:"videoId,omitempty"`
	QueueSize  int                `json:"queueSize"`
	Progress   *progress.Sample   `json:"progress,omitempty"`
	Result     *models.TaskResult `json:"result,omitempty"`
	Stage      models.Stage       `json:"stage,omitempty"`
	Error      string             `json:"error,omitempty"`
	Partial    *models.TaskResult `json:"partial,omitempty"`
	Err        *models.TaskError  `json:"-"`
}

type subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Reporter fans task notifications out to registered handlers and channel subscribers.
//
// Handlers run synchronously on the goroutine that produced the event and must not block.
// Channel delivery of queue-size and progress events is best effort: a full buffer drops them.
// Terminal events are always delivered to a subscriber until it unsubscribes.
type Reporter struct {
	mu         sync.RWMutex
	queueSize  []func(int)
	progress   []func(ProgressEvent)
	finished   []func(models.TaskResult)
	failed     []func(*models.TaskError, *models.TaskResult)
	subs       map[int]*subscription
	nextSubID  int
	now        func() time.Time
	latestSize int
}

// NewReporter creates a reporter with no listeners.
func NewReporter() *Reporter {
	return &Reporter{subs: make(map[int]*subscription), now: time.Now}
}

// OnQueueSize registers fn for running+waiting depth updates.
func (r *Reporter) OnQueueSize(fn func(int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queueSize = append(r.queueSize, fn)
}

// OnProgress registers fn for progress samples.
func (r *Reporter) OnProgress(fn func(ProgressEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, fn)
}

// OnFinished registers fn for successful completions.
func (r *Reporter) OnFinished(fn func(models.TaskResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, fn)
}

// OnError registers fn for failures. partial is never nil and holds whatever was known.
func (r *Reporter) OnError(fn func(err *models.TaskError, partial *models.TaskResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, fn)
}

// Subscribe returns a channel of events and a function that ends the subscription.
// The channel is closed once unsubscribed.
func (r *Reporter) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscription{ch: make(chan Event, buffer), done: make(chan struct{})}

	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = sub
	r.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			close(sub.done)
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// QueueSize returns the latest reported depth.
func (r *Reporter) QueueSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestSize
}

func (r *Reporter) emitQueueSize(n int) {
	r.mu.Lock()
	r.latestSize = n
	r.mu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.queueSize {
		fn(n)
	}
	r.publishLocked(Event{Kind: EventQueueSize, At: r.now(), QueueSize: n})
}

func (r *Reporter) emitProgress(ev ProgressEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.progress {
		fn(ev)
	}
	sample := ev.Sample
	r.publishLocked(Event{
		Kind:       EventProgress,
		At:         r.now(),
		TaskID:     ev.TaskID,
		ResourceID: ev.ResourceID,
		Progress:   &sample,
	})
}

func (r *Reporter) emitFinished(res models.TaskResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.finished {
		fn(res)
	}
	r.publishLocked(Event{
		Kind:       EventFinished,
		At:         r.now(),
		TaskID:     res.TaskID,
		ResourceID: res.ResourceID,
		Result:     &res,
	})
}

func (r *Reporter) emitError(err *models.TaskError, partial *models.TaskResult) {
	if partial == nil {
		partial = &models.TaskResult{TaskID: err.TaskID, ResourceID: err.ResourceID}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.failed {
		fn(err, partial)
	}
	r.publishLocked(Event{
		Kind:       EventError,
		At:         r.now(),
		TaskID:     err.TaskID,
		ResourceID: err.ResourceID,
		Stage:      err.Stage,
		Error:      err.Error(),
		Partial:    partial,
		Err:        err,
	})
}

// publishLocked sends ev to every subscriber. Callers hold r.mu for reading.
func (r *Reporter) publishLocked(ev Event) {
	for _, sub := range r.subs {
		if ev.Kind.Terminal() {
			select {
			case sub.ch <- ev:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		default:
			// Buffer full; depth and progress are best effort.
		}
	}
}
