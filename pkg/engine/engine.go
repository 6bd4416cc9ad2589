package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/harrisonrobin/kanba/pkg/model"
	"github.com/harrisonrobin/kanba/pkg/store"
)

var (
	ErrNotFound   = errors.New("task not found")
	ErrEmptyTitle = errors.New("task title must not be empty")
	ErrNoSink     = errors.New("no backup sink configured")
)

// Sink forwards one task snapshot to the remote backup. The remote side
// is write-only: nothing is ever read back from it.
type Sink interface {
	Put(ctx context.Context, task model.Task) error
}

// DefaultBackupTimeout bounds a single backup call so a stalled remote
// never hangs task management.
const DefaultBackupTimeout = 5 * time.Second

// Engine owns all task mutation. Every operation is a locked
// read-modify-write of the full board followed by a best-effort forward
// of the changed task to the backup sink; a sink failure never rolls
// back the local write.
type Engine struct {
	store         *store.Store
	sink          Sink
	now           func() time.Time
	backupTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithBackupTimeout overrides the per-call backup deadline.
func WithBackupTimeout(d time.Duration) Option {
	return func(e *Engine) { e.backupTimeout = d }
}

// New creates an engine over the given store. sink may be nil, in which
// case nothing is forwarded.
func New(st *store.Store, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		store:         st,
		sink:          sink,
		now:           time.Now,
		backupTimeout: DefaultBackupTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Changes carries the caller-editable fields for Update. Column and the
// time-tracking fields have no slot here: they are owned by Move.
type Changes struct {
	Title          *string
	Description    *string
	Priority       *model.Priority
	Tags           *[]string
	Order          *int
	EstimatedHours *float64
	DueDate        *model.Time
}

// Create adds a new task. column and priority default to backlog and
// medium when empty; order is appended at the end of the target column.
func (e *Engine) Create(title, description string, column model.Column, priority model.Priority, tags []string) (model.Task, error) {
	if strings.TrimSpace(title) == "" {
		return model.Task{}, ErrEmptyTitle
	}
	if column == "" {
		column = model.Backlog
	} else if _, err := model.ParseColumn(string(column)); err != nil {
		return model.Task{}, err
	}
	if priority == "" {
		priority = model.Medium
	} else {
		p, err := model.ParsePriority(string(priority))
		if err != nil {
			return model.Task{}, err
		}
		priority = p
	}
	if tags == nil {
		tags = []string{}
	}

	return e.mutate(func(tasks []model.Task) ([]model.Task, *model.Task, error) {
		id := nextID(e.now(), tasks)
		task := model.Task{
			ID:          id,
			Title:       title,
			Description: description,
			Column:      column,
			Priority:    priority,
			Tags:        tags,
			Created:     id,
			Order:       countInColumn(tasks, column),
		}
		tasks = append(tasks, task)
		return tasks, &tasks[len(tasks)-1], nil
	})
}

// Update applies field changes to an existing task. Workflow state is
// untouchable through this path.
func (e *Engine) Update(id int64, ch Changes) (model.Task, error) {
	if ch.Title != nil && strings.TrimSpace(*ch.Title) == "" {
		return model.Task{}, ErrEmptyTitle
	}
	if ch.Priority != nil {
		p, err := model.ParsePriority(string(*ch.Priority))
		if err != nil {
			return model.Task{}, err
		}
		ch.Priority = &p
	}

	return e.mutate(func(tasks []model.Task) ([]model.Task, *model.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		t := &tasks[i]
		if ch.Title != nil {
			t.Title = *ch.Title
		}
		if ch.Description != nil {
			t.Description = *ch.Description
		}
		if ch.Priority != nil {
			t.Priority = *ch.Priority
		}
		if ch.Tags != nil {
			t.Tags = *ch.Tags
		}
		if ch.Order != nil {
			t.Order = *ch.Order
		}
		if ch.EstimatedHours != nil {
			t.EstimatedHours = ch.EstimatedHours
		}
		if ch.DueDate != nil {
			t.DueDate = ch.DueDate
		}
		return tasks, t, nil
	})
}

// Move transitions a task to another column. Entering progress for the
// first time records startTime; entering done for the first time records
// endTime and, when startTime is known, the elapsed actualHours. Both
// timestamps are set at most once and never reset by later moves.
func (e *Engine) Move(id int64, target model.Column) (model.Task, error) {
	if _, err := model.ParseColumn(string(target)); err != nil {
		return model.Task{}, err
	}

	return e.mutate(func(tasks []model.Task) ([]model.Task, *model.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		t := &tasks[i]
		if t.Column == target {
			// Same column: nothing to change, but the write and the
			// forward still happen.
			return tasks, t, nil
		}

		t.Order = countInColumnExcept(tasks, target, id)
		t.Column = target

		now := model.NewTime(e.now())
		if target == model.Progress && t.StartTime == nil {
			t.StartTime = &now
		}
		if target == model.Done && t.EndTime == nil {
			t.EndTime = &now
			if t.StartTime != nil {
				hours := t.EndTime.Sub(t.StartTime.Time).Hours()
				t.ActualHours = &hours
			}
		}
		return tasks, t, nil
	})
}

// Delete removes a task from the board. Deletions are not propagated to
// the backup sink.
func (e *Engine) Delete(id int64) error {
	_, err := e.mutate(func(tasks []model.Task) ([]model.Task, *model.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		tasks = append(tasks[:i], tasks[i+1:]...)
		return tasks, nil, nil
	})
	return err
}

// SetDueDate sets a task's due date.
func (e *Engine) SetDueDate(id int64, due time.Time) (model.Task, error) {
	d := model.NewTime(due)
	return e.Update(id, Changes{DueDate: &d})
}

// SetEstimatedHours sets a task's estimate.
func (e *Engine) SetEstimatedHours(id int64, hours float64) (model.Task, error) {
	return e.Update(id, Changes{EstimatedHours: &hours})
}

// Migrate re-forwards every stored task to the backup sink. Per-task
// failures are counted rather than aborting the sweep.
func (e *Engine) Migrate() (synced, failed int, err error) {
	if e.sink == nil {
		return 0, 0, ErrNoSink
	}
	tasks, err := e.store.Load()
	if err != nil {
		return 0, 0, err
	}
	for _, t := range tasks {
		if err := e.put(t); err != nil {
			log.Printf("Warning: failed to sync task %d: %v", t.ID, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// mutate runs one locked read-modify-write sequence and then forwards
// the changed task, if any, to the sink.
func (e *Engine) mutate(apply func([]model.Task) ([]model.Task, *model.Task, error)) (model.Task, error) {
	var changed *model.Task
	err := e.store.WithLock(func() error {
		tasks, err := e.store.Load()
		if err != nil {
			return err
		}
		updated, ch, err := apply(tasks)
		if err != nil {
			return err
		}
		if err := e.store.Save(updated); err != nil {
			return err
		}
		if ch != nil {
			snapshot := *ch
			changed = &snapshot
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	if changed == nil {
		return model.Task{}, nil
	}
	e.forward(*changed)
	return *changed, nil
}

// forward ships one task to the sink. The local write already committed,
// so a failure is only worth a warning.
func (e *Engine) forward(t model.Task) {
	if e.sink == nil {
		return
	}
	if err := e.put(t); err != nil {
		log.Printf("Warning: failed to sync task %d to backup: %v", t.ID, err)
	}
}

func (e *Engine) put(t model.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.backupTimeout)
	defer cancel()
	return e.sink.Put(ctx, t)
}

// nextID derives a creation id from the clock. Ids stay strictly above
// every existing id so same-millisecond creations cannot collide.
func nextID(now time.Time, tasks []model.Task) int64 {
	id := now.UnixMilli()
	for i := range tasks {
		if tasks[i].ID >= id {
			id = tasks[i].ID + 1
		}
	}
	return id
}

func indexOf(tasks []model.Task, id int64) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func countInColumn(tasks []model.Task, col model.Column) int {
	n := 0
	for i := range tasks {
		if tasks[i].Column == col {
			n++
		}
	}
	return n
}

func countInColumnExcept(tasks []model.Task, col model.Column, id int64) int {
	n := 0
	for i := range tasks {
		if tasks[i].Column == col && tasks[i].ID != id {
			n++
		}
	}
	return n
}
