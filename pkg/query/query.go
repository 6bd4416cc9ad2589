// Package query provides read-only projections over a board snapshot.
// Nothing here mutates tasks or talks to the backup sink.
package query

import (
	"sort"
	"time"

	"github.com/harrisonrobin/kanba/pkg/model"
)

// ByColumn returns the tasks in a column, sorted by their display order.
func ByColumn(tasks []model.Task, col model.Column) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Column == col {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// ByPriority returns the tasks with a given priority, column order kept.
func ByPriority(tasks []model.Task, p model.Priority) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Priority == p {
			out = append(out, t)
		}
	}
	return out
}

// ByTag returns the tasks carrying a given tag.
func ByTag(tasks []model.Task, tag string) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		for _, tg := range t.Tags {
			if tg == tag {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Overdue returns tasks whose due date has passed and that are not done.
func Overdue(tasks []model.Task, now time.Time) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.DueDate != nil && t.DueDate.Before(now) && t.Column != model.Done {
			out = append(out, t)
		}
	}
	return out
}

// DueToday returns tasks due on the current (UTC) calendar day that are
// not already overdue.
func DueToday(tasks []model.Task, now time.Time) []model.Task {
	year, month, day := now.UTC().Date()
	var out []model.Task
	for _, t := range tasks {
		if t.DueDate == nil || t.DueDate.Before(now) {
			continue
		}
		y, m, d := t.DueDate.UTC().Date()
		if y == year && m == month && d == day {
			out = append(out, t)
		}
	}
	return out
}

// Summary is the board status snapshot consumed by the CLI and the bot.
type Summary struct {
	Total      int
	ByColumn   map[model.Column]int
	InProgress []model.Task
	Overdue    []model.Task
	DueToday   []model.Task
	Timestamp  time.Time
}

// Summarize computes per-column counts plus the overdue and due-today
// task lists.
func Summarize(tasks []model.Task, now time.Time) Summary {
	s := Summary{
		Total:      len(tasks),
		ByColumn:   make(map[model.Column]int, len(model.Columns)),
		InProgress: ByColumn(tasks, model.Progress),
		Overdue:    Overdue(tasks, now),
		DueToday:   DueToday(tasks, now),
		Timestamp:  now,
	}
	for _, c := range model.Columns {
		s.ByColumn[c] = 0
	}
	for _, t := range tasks {
		s.ByColumn[t.Column]++
	}
	return s
}
