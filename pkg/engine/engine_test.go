package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/kanba/pkg/model"
	"github.com/harrisonrobin/kanba/pkg/query"
	"github.com/harrisonrobin/kanba/pkg/store"
)

type fakeSink struct {
	puts []model.Task
	fail bool
}

func (f *fakeSink) Put(ctx context.Context, t model.Task) error {
	if f.fail {
		return errors.New("remote down")
	}
	f.puts = append(f.puts, t)
	return nil
}

// clock is a settable time source for the engine under test.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakeSink, *clock) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "tasks.json"))
	sink := &fakeSink{}
	clk := &clock{t: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	return New(st, sink, WithClock(clk.now)), st, sink, clk
}

func TestCreateDefaults(t *testing.T) {
	eng, _, sink, clk := newTestEngine(t)

	task, err := eng.Create("Fix login bug", "", "", model.High, nil)
	require.NoError(t, err)

	assert.Equal(t, clk.t.UnixMilli(), task.ID)
	assert.Equal(t, task.ID, task.Created)
	assert.Equal(t, model.Backlog, task.Column)
	assert.Equal(t, model.High, task.Priority)
	assert.Equal(t, 0, task.Order)
	assert.Nil(t, task.StartTime)
	assert.Nil(t, task.EndTime)
	require.Len(t, sink.puts, 1)
	assert.Equal(t, task.ID, sink.puts[0].ID)
}

func TestCreateEmptyTitle(t *testing.T) {
	eng, st, sink, _ := newTestEngine(t)

	_, err := eng.Create("   ", "", "", "", nil)
	assert.ErrorIs(t, err, ErrEmptyTitle)

	tasks, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Empty(t, sink.puts)
}

func TestCreateAppendsOrderPerColumn(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	a, err := eng.Create("a", "", model.Backlog, "", nil)
	require.NoError(t, err)
	b, err := eng.Create("b", "", model.Backlog, "", nil)
	require.NoError(t, err)
	c, err := eng.Create("c", "", model.NextUp, "", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, b.Order)
	assert.Equal(t, 0, c.Order)
}

func TestCreateSameMillisecondIDs(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	a, err := eng.Create("a", "", "", "", nil)
	require.NoError(t, err)
	b, err := eng.Create("b", "", "", "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMoveSetsStartTimeOnce(t *testing.T) {
	eng, _, _, clk := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	t0 := clk.t
	moved, err := eng.Move(task.ID, model.Progress)
	require.NoError(t, err)
	require.NotNil(t, moved.StartTime)
	assert.True(t, moved.StartTime.Equal(t0))

	// Leaving and re-entering progress later keeps the first timestamp.
	_, err = eng.Move(task.ID, model.NextUp)
	require.NoError(t, err)
	clk.t = clk.t.Add(2 * time.Hour)
	again, err := eng.Move(task.ID, model.Progress)
	require.NoError(t, err)
	require.NotNil(t, again.StartTime)
	assert.True(t, again.StartTime.Equal(t0))
}

func TestMoveToDoneComputesActualHours(t *testing.T) {
	eng, _, _, clk := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	_, err = eng.Move(task.ID, model.Progress)
	require.NoError(t, err)

	clk.t = clk.t.Add(3*time.Hour + 30*time.Minute)
	done, err := eng.Move(task.ID, model.Done)
	require.NoError(t, err)

	require.NotNil(t, done.EndTime)
	assert.True(t, done.EndTime.Equal(clk.t))
	require.NotNil(t, done.ActualHours)
	assert.Equal(t, 3.5, *done.ActualHours)
}

func TestMoveToDoneWithoutStartLeavesActualHoursAbsent(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	done, err := eng.Move(task.ID, model.Done)
	require.NoError(t, err)
	require.NotNil(t, done.EndTime)
	assert.Nil(t, done.ActualHours)
}

func TestMoveEndTimeSetOnce(t *testing.T) {
	eng, _, _, clk := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	_, err = eng.Move(task.ID, model.Progress)
	require.NoError(t, err)
	clk.t = clk.t.Add(time.Hour)
	first, err := eng.Move(task.ID, model.Done)
	require.NoError(t, err)

	// Re-open and finish again much later: endTime and actualHours stand.
	clk.t = clk.t.Add(48 * time.Hour)
	_, err = eng.Move(task.ID, model.Progress)
	require.NoError(t, err)
	clk.t = clk.t.Add(time.Hour)
	second, err := eng.Move(task.ID, model.Done)
	require.NoError(t, err)

	assert.True(t, second.EndTime.Equal(first.EndTime.Time))
	assert.Equal(t, *first.ActualHours, *second.ActualHours)
	assert.True(t, second.StartTime.Equal(first.StartTime.Time))
}

func TestMoveSameColumnStillPersistsAndForwards(t *testing.T) {
	eng, st, sink, _ := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)
	sink.puts = nil

	moved, err := eng.Move(task.ID, model.Backlog)
	require.NoError(t, err)
	assert.Equal(t, model.Backlog, moved.Column)
	assert.Equal(t, task.Order, moved.Order)
	assert.Len(t, sink.puts, 1)

	tasks, err := st.Load()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestMoveAppendsToTargetColumnOrder(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	a, _ := eng.Create("a", "", model.NextUp, "", nil)
	b, _ := eng.Create("b", "", model.NextUp, "", nil)
	c, err := eng.Create("c", "", model.Backlog, "", nil)
	require.NoError(t, err)

	moved, err := eng.Move(c.ID, model.NextUp)
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Order)
	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, b.Order)
}

func TestMoveInvalidInputs(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	_, err = eng.Move(task.ID, "doing")
	assert.ErrorIs(t, err, model.ErrInvalidColumn)

	_, err = eng.Move(42, model.Done)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCannotTouchWorkflowState(t *testing.T) {
	eng, _, _, clk := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)
	_, err = eng.Move(task.ID, model.Progress)
	require.NoError(t, err)

	clk.t = clk.t.Add(time.Hour)
	title := "renamed"
	tags := []string{"x"}
	updated, err := eng.Update(task.ID, Changes{Title: &title, Tags: &tags})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, model.Progress, updated.Column)
	require.NotNil(t, updated.StartTime)
	assert.True(t, updated.StartTime.Equal(clk.t.Add(-time.Hour)))
	assert.Nil(t, updated.EndTime)
	assert.Nil(t, updated.ActualHours)
}

func TestUpdateValidation(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	empty := " "
	_, err = eng.Update(task.ID, Changes{Title: &empty})
	assert.ErrorIs(t, err, ErrEmptyTitle)

	bad := model.Priority("urgent")
	_, err = eng.Update(task.ID, Changes{Priority: &bad})
	assert.ErrorIs(t, err, model.ErrInvalidPriority)

	_, err = eng.Update(42, Changes{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateNormalizesLegacyPriority(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	legacy := model.Priority("med")
	updated, err := eng.Update(task.ID, Changes{Priority: &legacy})
	require.NoError(t, err)
	assert.Equal(t, model.Medium, updated.Priority)
}

func TestDelete(t *testing.T) {
	eng, st, sink, _ := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)
	sink.puts = nil

	require.NoError(t, eng.Delete(task.ID))
	tasks, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, tasks)
	// Deletions are not mirrored.
	assert.Empty(t, sink.puts)

	err = eng.Delete(task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetDueDateAndEstimate(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	task, err := eng.Create("work", "", "", "", nil)
	require.NoError(t, err)

	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	updated, err := eng.SetDueDate(task.ID, due)
	require.NoError(t, err)
	require.NotNil(t, updated.DueDate)
	assert.True(t, updated.DueDate.Equal(due))

	updated, err = eng.SetEstimatedHours(task.ID, 2.5)
	require.NoError(t, err)
	require.NotNil(t, updated.EstimatedHours)
	assert.Equal(t, 2.5, *updated.EstimatedHours)

	_, err = eng.SetDueDate(42, due)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackupFailureDoesNotRollBack(t *testing.T) {
	eng, st, sink, _ := newTestEngine(t)
	sink.fail = true

	task, err := eng.Create("survives", "", "", "", nil)
	require.NoError(t, err)

	tasks, err := st.Load()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
}

func TestNilSink(t *testing.T) {
	st := store.New(filepath.Join(t.TempDir(), "tasks.json"))
	eng := New(st, nil)

	_, err := eng.Create("no backup configured", "", "", "", nil)
	require.NoError(t, err)

	_, _, err = eng.Migrate()
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestMigrate(t *testing.T) {
	eng, _, sink, _ := newTestEngine(t)
	_, err := eng.Create("a", "", "", "", nil)
	require.NoError(t, err)
	_, err = eng.Create("b", "", "", "", nil)
	require.NoError(t, err)
	sink.puts = nil

	synced, failed, err := eng.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 0, failed)
	assert.Len(t, sink.puts, 2)
}

func TestOrderPreservedAcrossUnrelatedMutations(t *testing.T) {
	eng, st, _, _ := newTestEngine(t)
	a, _ := eng.Create("a", "", model.Backlog, "", nil)
	b, _ := eng.Create("b", "", model.Backlog, "", nil)
	c, err := eng.Create("c", "", model.NextUp, "", nil)
	require.NoError(t, err)

	// Churn in another column must not disturb backlog ordering.
	_, err = eng.Move(c.ID, model.Progress)
	require.NoError(t, err)
	_, err = eng.Move(c.ID, model.Done)
	require.NoError(t, err)

	tasks, err := st.Load()
	require.NoError(t, err)
	backlog := query.ByColumn(tasks, model.Backlog)
	require.Len(t, backlog, 2)
	assert.Equal(t, a.ID, backlog[0].ID)
	assert.Equal(t, b.ID, backlog[1].ID)
}
