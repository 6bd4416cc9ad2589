package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Column is a stage of the fixed workflow a task occupies.
type Column string

const (
	Backlog  Column = "backlog"
	NextUp   Column = "next-up"
	Progress Column = "progress"
	Done     Column = "done"
)

// Columns lists every column in board display order.
var Columns = []Column{Backlog, NextUp, Progress, Done}

var ErrInvalidColumn = errors.New("invalid column")

// ParseColumn validates a column name.
func ParseColumn(s string) (Column, error) {
	for _, c := range Columns {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidColumn, s)
}

// Priority is a task's urgency level.
type Priority string

const (
	Low      Priority = "low"
	Medium   Priority = "medium"
	High     Priority = "high"
	Critical Priority = "critical"
)

var ErrInvalidPriority = errors.New("invalid priority")

// ParsePriority validates a priority name. The short form "med" found in
// older board files is accepted and normalized to "medium".
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return Low, nil
	case "medium", "med":
		return Medium, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Task is a single board card. The JSON field names match the on-disk
// board document; timestamps are RFC 3339 and ids are epoch milliseconds
// assigned at creation.
type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Column      Column   `json:"col"`
	Priority    Priority `json:"priority"`
	Tags        []string `json:"tags"`
	Created     int64    `json:"created"`
	Order       int      `json:"order"`

	// Time tracking. StartTime is set the first time the task enters
	// progress, EndTime the first time it enters done; neither is ever
	// cleared or overwritten afterwards.
	StartTime      *Time    `json:"startTime"`
	EndTime        *Time    `json:"endTime"`
	EstimatedHours *float64 `json:"estimatedHours"`
	ActualHours    *float64 `json:"actualHours"`
	DueDate        *Time    `json:"dueDate"`

	// Extra holds fields from newer board formats that this version does
	// not know about. They survive a load/save round trip untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

// taskJSON shadows Task to avoid recursing into the custom (un)marshalers.
type taskJSON Task

var taskFields = []string{
	"id", "title", "description", "col", "priority", "tags", "created",
	"order", "startTime", "endTime", "estimatedHours", "actualHours", "dueDate",
}

// UnmarshalJSON implements the json.Unmarshaler interface for Task,
// keeping unknown fields in Extra.
func (t *Task) UnmarshalJSON(b []byte) error {
	var known taskJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, f := range taskFields {
		delete(raw, f)
	}
	if len(raw) > 0 {
		known.Extra = raw
	}

	*t = Task(known)
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Task, merging
// any preserved unknown fields back into the document.
func (t Task) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(taskJSON(t))
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return b, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range t.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
