// Package ui defines how interactive flows report progress to whatever renders them.
package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Presenter receives the visible side effects of a flow.
type Presenter interface {
	// SetBusy disables (busy) or re-enables the action controls. action names
	// the control that was activated so it can show a loading state.
	SetBusy(busy bool, action string)
	// Notify shows a transient message.
	Notify(level Level, message string)
	// Reload asks for the view to be refreshed after the given delay.
	Reload(after time.Duration)
}

// EventKind identifies a recorded presenter call.
type EventKind string

const (
	EventBusy   EventKind = "busy"
	EventNotify EventKind = "notify"
	EventReload EventKind = "reload"
)

// Event is one presenter call.
type Event struct {
	Kind    EventKind     `json:"kind"`
	Busy    bool          `json:"busy,omitempty"`
	Action  string        `json:"action,omitempty"`
	Level   Level         `json:"level,omitempty"`
	Message string        `json:"message,omitempty"`
	After   time.Duration `json:"after,omitempty"`
}

// Notification is a message shown to the user.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Recorder is a Presenter that keeps every call, in order.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	busy   bool
	action string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetBusy(busy bool, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = busy
	r.action = ""
	if busy {
		r.action = action
	}
	r.events = append(r.events, Event{Kind: EventBusy, Busy: busy, Action: action})
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: EventNotify, Level: level, Message: message})
}

func (r *Recorder) Reload(after time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: EventReload, After: after})
}

// Events returns a copy of the recorded calls.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Busy reports whether the controls are currently disabled, and the loading action.
func (r *Recorder) Busy() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy, r.action
}

// Notifications returns the notify calls in order.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Notification{}
	for _, e := range r.events {
		if e.Kind == EventNotify {
			out = append(out, Notification{Level: e.Level, Message: e.Message})
		}
	}
	return out
}

// ReloadAfter returns the delay of the last reload request, and whether one was made.
func (r *Recorder) ReloadAfter() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == EventReload {
			return r.events[i].After, true
		}
	}
	return 0, false
}

// Console is a Presenter that prints notifications as lines on a terminal.
// Busy state is ignored and reloads are only remembered, since a command
// exits once its flow ends.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	reloaded bool
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) SetBusy(bool, string) {}

func (c *Console) Notify(level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := map[Level]string{LevelInfo: "i", LevelSuccess: "ok", LevelError: "!!"}[level]
	if prefix == "" {
		prefix = string(level)
	}
	fmt.Fprintf(c.w, "[%s] %s\n", prefix, message)
}

func (c *Console) Reload(time.Duration) {
	c.mu.Lock()
	c.reloaded = true
	c.mu.Unlock()
}

// Reloaded reports whether the flow asked for a refresh.
func (c *Console) Reloaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reloaded
}
