// Package bot maps short chat commands onto engine and query
// operations and formats markdown replies. It never mutates tasks
// except through the engine.
package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/kanba/pkg/engine"
	"github.com/harrisonrobin/kanba/pkg/model"
	"github.com/harrisonrobin/kanba/pkg/query"
	"github.com/harrisonrobin/kanba/pkg/store"
)

// Handler answers /kanban commands against one board.
type Handler struct {
	engine   *engine.Engine
	store    *store.Store
	boardURL string
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the handler's time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a command handler over the given engine and store.
func New(eng *engine.Engine, st *store.Store, boardURL string, opts ...Option) *Handler {
	h := &Handler{engine: eng, store: st, boardURL: boardURL, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleText handles a raw message, stripping an optional /kanban
// prefix before dispatching.
func (h *Handler) HandleText(text string) string {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "/kanban"))
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return h.Handle("status", nil)
	}
	return h.Handle(parts[0], parts[1:])
}

// Handle dispatches one command.
//
// Commands:
//
//	status  - overall board status
//	progress - show in-progress tasks
//	next    - show next-up tasks
//	overdue - show overdue tasks
//	add "Title" - add task to backlog
//	move <id> <column> - move task
func (h *Handler) Handle(command string, args []string) string {
	switch {
	case command == "" || command == "status":
		return h.status()
	case command == "progress":
		return h.showProgress()
	case command == "next":
		return h.showNextUp()
	case command == "overdue":
		return h.showOverdue()
	case command == "add" && len(args) > 0:
		return h.addTask(strings.Join(args, " "))
	case command == "move" && len(args) >= 2:
		return h.moveTask(args[0], args[1])
	case command == "help":
		return h.helpText()
	default:
		return "❓ Unknown command. Use /kanban help for usage."
	}
}

func (h *Handler) status() string {
	tasks, err := h.store.Load()
	if err != nil {
		return fmt.Sprintf("❌ Could not read the board: %v", err)
	}
	now := h.now()
	s := query.Summarize(tasks, now)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Kanban Status** - %s\n\n", now.UTC().Format("Jan 02, 3:04 PM"))

	fmt.Fprintf(&b, "**In Progress** (%d):\n", s.ByColumn[model.Progress])
	for i, t := range s.InProgress {
		if i == 5 {
			fmt.Fprintf(&b, "  _...and %d more_\n", len(s.InProgress)-5)
			break
		}
		fmt.Fprintf(&b, "• %s: %s", formatTaskID(t), truncate(t.Title, 50))
		if hours := h.hoursInProgress(t); hours != "" {
			fmt.Fprintf(&b, " (%s)", hours)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	nextUp := query.ByColumn(tasks, model.NextUp)
	fmt.Fprintf(&b, "**Next Up** (%d):\n", len(nextUp))
	for i, t := range nextUp {
		if i == 3 {
			fmt.Fprintf(&b, "  _...and %d more_\n", len(nextUp)-3)
			break
		}
		fmt.Fprintf(&b, "• %s: %s\n", formatTaskID(t), truncate(t.Title, 50))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "**Backlog:** %d tasks\n", s.ByColumn[model.Backlog])
	fmt.Fprintf(&b, "**Done:** %d tasks\n\n", s.ByColumn[model.Done])

	if len(s.Overdue) > 0 {
		fmt.Fprintf(&b, "🔴 **Overdue:** %d tasks\n", len(s.Overdue))
	}
	if len(s.DueToday) > 0 {
		fmt.Fprintf(&b, "⚠️ **Due today:** %d task(s)\n", len(s.DueToday))
	}

	if h.boardURL != "" {
		fmt.Fprintf(&b, "\n🔗 View board: %s", h.boardURL)
	}
	return b.String()
}

func (h *Handler) showProgress() string {
	tasks, err := h.store.Load()
	if err != nil {
		return fmt.Sprintf("❌ Could not read the board: %v", err)
	}
	inProgress := query.ByColumn(tasks, model.Progress)
	if len(inProgress) == 0 {
		return "✅ No tasks in progress"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚀 **In Progress** (%d tasks):\n\n", len(inProgress))
	for _, t := range inProgress {
		fmt.Fprintf(&b, "**%s:** %s\n", formatTaskID(t), t.Title)
		if hours := h.hoursInProgress(t); hours != "" {
			fmt.Fprintf(&b, "  ⏱ %s\n", hours)
		}
		if t.Priority == model.Critical {
			b.WriteString("  🔴 Critical\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (h *Handler) showNextUp() string {
	tasks, err := h.store.Load()
	if err != nil {
		return fmt.Sprintf("❌ Could not read the board: %v", err)
	}
	nextUp := query.ByColumn(tasks, model.NextUp)
	if len(nextUp) == 0 {
		return "📭 No tasks in Next Up"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 **Next Up** (%d tasks):\n\n", len(nextUp))
	for _, t := range nextUp {
		fmt.Fprintf(&b, "**%s:** %s\n", formatTaskID(t), t.Title)
		if t.Priority == model.Critical || t.Priority == model.High {
			fmt.Fprintf(&b, "  Priority: %s\n", t.Priority)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (h *Handler) showOverdue() string {
	tasks, err := h.store.Load()
	if err != nil {
		return fmt.Sprintf("❌ Could not read the board: %v", err)
	}
	now := h.now()
	overdue := query.Overdue(tasks, now)
	if len(overdue) == 0 {
		return "✅ No overdue tasks!"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔴 **Overdue Tasks** (%d):\n\n", len(overdue))
	for _, t := range overdue {
		fmt.Fprintf(&b, "**%s:** %s\n", formatTaskID(t), t.Title)
		days := int(now.Sub(t.DueDate.Time).Hours() / 24)
		fmt.Fprintf(&b, "  Due: %s (%d days ago)\n", t.DueDate.UTC().Format("Jan 02"), days)
		fmt.Fprintf(&b, "  Column: %s\n\n", t.Column)
	}
	return b.String()
}

func (h *Handler) addTask(title string) string {
	if len(title) < 3 {
		return "❌ Task title too short. Provide a meaningful title."
	}
	task, err := h.engine.Create(title, "", model.Backlog, model.Medium, nil)
	if err != nil {
		return fmt.Sprintf("❌ Could not add task: %v", err)
	}
	return fmt.Sprintf("✅ Added task **%s**: %s", formatTaskID(task), title)
}

func (h *Handler) moveTask(idArg, columnArg string) string {
	idArg = strings.TrimPrefix(strings.ToUpper(idArg), "TASK-")
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Sprintf("❌ Invalid task ID: %s", idArg)
	}

	column, err := model.ParseColumn(columnArg)
	if err != nil {
		cols := make([]string, len(model.Columns))
		for i, c := range model.Columns {
			cols[i] = string(c)
		}
		return fmt.Sprintf("❌ Invalid column. Use one of: %s", strings.Join(cols, ", "))
	}

	task, err := h.engine.Move(id, column)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return fmt.Sprintf("❌ Task %d not found", id)
		}
		return fmt.Sprintf("❌ Could not move task: %v", err)
	}
	return fmt.Sprintf("✅ Moved **%s** to **%s**", truncate(task.Title, 40), column)
}

func (h *Handler) helpText() string {
	return strings.TrimSpace(`
📚 **Kanban Bot Commands**

**/kanban status** - Overview of board
**/kanban progress** - Show in-progress tasks
**/kanban next** - Show next-up tasks
**/kanban overdue** - Show overdue tasks
**/kanban add "Title"** - Add task to backlog
**/kanban move TASK-019 progress** - Move task to column

**Columns:** backlog, next-up, progress, done

**Example:**
` + "```" + `
/kanban add "Fix login bug"
/kanban move 1234 progress
` + "```")
}

// formatTaskID renders the short display id (TASK-XXX, last three
// digits).
func formatTaskID(t model.Task) string {
	s := strconv.FormatInt(t.ID, 10)
	if len(s) > 3 {
		s = s[len(s)-3:]
	}
	return "TASK-" + s
}

// hoursInProgress describes how long a task has been started, or ""
// when it never was.
func (h *Handler) hoursInProgress(t model.Task) string {
	if t.StartTime == nil {
		return ""
	}
	hours := h.now().Sub(t.StartTime.Time).Hours()
	switch {
	case hours < 1:
		return "started <1h ago"
	case hours < 24:
		return fmt.Sprintf("started %.0fh ago", hours)
	default:
		return fmt.Sprintf("started %.0fd ago", hours/24)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
