package task

import (
	"time"
)

// DefaultStatus is the status given to newly created tasks.
const DefaultStatus = "todo"

// Field names a mutable task field.
type Field string

const (
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
)

// Task is one tracked work item.
type Task struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Clock supplies the current time for timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// New returns a task with the default status. Both timestamps come from a
// single clock read.
func New(id uint64, description string, clock Clock) Task {
	now := clockOrSystem(clock).Now().Unix()
	return Task{
		ID:          id,
		Description: description,
		Status:      DefaultStatus,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply sets the named field to value and refreshes UpdatedAt.
// Unknown field names leave the content untouched but still refresh
// UpdatedAt.
func (t *Task) Apply(field Field, value string, clock Clock) {
	switch field {
	case FieldDescription:
		t.Description = value
	case FieldStatus:
		t.Status = value
	}
	t.UpdatedAt = clockOrSystem(clock).Now().Unix()
}

// Created returns CreatedAt as a time.
func (t Task) Created() time.Time {
	return time.Unix(t.CreatedAt, 0)
}

// Updated returns UpdatedAt as a time.
func (t Task) Updated() time.Time {
	return time.Unix(t.UpdatedAt, 0)
}

func clockOrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
