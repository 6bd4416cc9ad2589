package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/kanba/pkg/bot"
	"github.com/harrisonrobin/kanba/pkg/config"
	"github.com/harrisonrobin/kanba/pkg/engine"
	"github.com/harrisonrobin/kanba/pkg/model"
	"github.com/harrisonrobin/kanba/pkg/query"
	"github.com/harrisonrobin/kanba/pkg/render"
	"github.com/harrisonrobin/kanba/pkg/store"
	"github.com/harrisonrobin/kanba/pkg/supermemory"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
}

// newApp wires the store, the backup sink and the engine from config.
// A missing API key only disables the backup mirror; the board itself
// keeps working.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	st := store.New(cfg.TasksFile)

	var sink engine.Sink
	key, err := supermemory.LoadAPIKey(cfg.KeysFile)
	switch {
	case err == nil:
		sink = supermemory.NewClient(key)
	case errors.Is(err, supermemory.ErrNoAPIKey):
		log.Printf("Warning: %v; backup sync disabled", err)
	default:
		return nil, err
	}

	return &app{cfg: cfg, store: st, engine: engine.New(st, sink)}, nil
}

func main() {
	var a *app

	root := &cobra.Command{
		Use:           "kanba",
		Short:         "Personal kanban board with cloud backup",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp()
			return err
		},
	}

	root.AddCommand(statusCmd(&a))
	root.AddCommand(addCmd(&a))
	root.AddCommand(moveCmd(&a))
	root.AddCommand(listCmd(&a))
	root.AddCommand(updateCmd(&a))
	root.AddCommand(deleteCmd(&a))
	root.AddCommand(dueCmd(&a))
	root.AddCommand(estimateCmd(&a))
	root.AddCommand(generateCmd(&a))
	root.AddCommand(migrateCmd(&a))
	root.AddCommand(botCmd(&a))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func statusCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show board status",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := (*a).store.Load()
			if err != nil {
				return err
			}
			s := query.Summarize(tasks, time.Now())

			fmt.Printf("\n%s\n", bold("📊 Kanban Board Status"))
			fmt.Println("==================================================")
			fmt.Printf("Total tasks: %d\n\nBy column:\n", s.Total)
			for _, c := range model.Columns {
				fmt.Printf("  %-12s %3d tasks\n", c, s.ByColumn[c])
			}

			if len(s.InProgress) > 0 {
				fmt.Printf("\n%s\n", green("🚀 In Progress:"))
				for i, t := range s.InProgress {
					if i == 5 {
						break
					}
					fmt.Printf("  • %s\n", truncate(t.Title, 60))
				}
			}
			if len(s.Overdue) > 0 {
				fmt.Printf("\n%s\n", red(fmt.Sprintf("🔴 Overdue (%d):", len(s.Overdue))))
				for i, t := range s.Overdue {
					if i == 3 {
						break
					}
					fmt.Printf("  • %s\n", truncate(t.Title, 60))
				}
			}
			if len(s.DueToday) > 0 {
				fmt.Printf("\n%s\n", yellow(fmt.Sprintf("⚠️  Due today (%d)", len(s.DueToday))))
			}
			fmt.Println()
			return nil
		},
	}
}

func addCmd(a **app) *cobra.Command {
	var description, column, priority string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add new task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := (*a).engine.Create(args[0], description, model.Column(column), model.Priority(priority), tags)
			if err != nil {
				return err
			}
			fmt.Printf("%s Added task %d: %s\n", green("✅"), task.ID, task.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&column, "column", "c", "backlog", "Column to place task")
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "Priority (low, medium, high, critical)")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "Tags")
	return cmd
}

func moveCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <column>",
		Short: "Move task to different column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := (*a).engine.Move(id, model.Column(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("%s Moved task %d to %s\n", green("✅"), task.ID, task.Column)
			return nil
		},
	}
}

func listCmd(a **app) *cobra.Command {
	var column, priority, tag string
	var overdueOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := (*a).store.Load()
			if err != nil {
				return err
			}

			if column != "" {
				c, err := model.ParseColumn(column)
				if err != nil {
					return err
				}
				tasks = query.ByColumn(tasks, c)
			}
			if priority != "" {
				p, err := model.ParsePriority(priority)
				if err != nil {
					return err
				}
				tasks = query.ByPriority(tasks, p)
			}
			if tag != "" {
				tasks = query.ByTag(tasks, tag)
			}
			if overdueOnly {
				tasks = query.Overdue(tasks, time.Now())
			}

			fmt.Printf("\n📋 Tasks (%d):\n", len(tasks))
			fmt.Println("================================================================================")
			for _, t := range tasks {
				fmt.Printf("\n%d | %-10s | %-8s\n", t.ID, t.Column, t.Priority)
				fmt.Printf("  %s\n", t.Title)
				if t.Description != "" {
					fmt.Printf("  %s\n", truncate(t.Description, 100))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&column, "column", "c", "", "Filter by column")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Filter by priority")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Filter by tag")
	cmd.Flags().BoolVar(&overdueOnly, "overdue", false, "Only overdue tasks")
	return cmd
}

func updateCmd(a **app) *cobra.Command {
	var title, description, priority string
	var tags []string
	var order int

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var ch engine.Changes
			if cmd.Flags().Changed("title") {
				ch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				ch.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				p := model.Priority(priority)
				ch.Priority = &p
			}
			if cmd.Flags().Changed("tags") {
				ch.Tags = &tags
			}
			if cmd.Flags().Changed("order") {
				ch.Order = &order
			}

			task, err := (*a).engine.Update(id, ch)
			if err != nil {
				return err
			}
			fmt.Printf("%s Updated task %d\n", green("✅"), task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&priority, "priority", "", "New priority")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "New tags")
	cmd.Flags().IntVar(&order, "order", 0, "New position within column")
	return cmd
}

func deleteCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := (*a).engine.Delete(id); err != nil {
				return err
			}
			fmt.Printf("%s Deleted task %d\n", green("✅"), id)
			return nil
		},
	}
}

func dueCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "due <id> <date>",
		Short: "Set task due date (YYYY-MM-DD or RFC 3339)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			due, err := parseDate(args[1])
			if err != nil {
				return err
			}
			task, err := (*a).engine.SetDueDate(id, due)
			if err != nil {
				return err
			}
			fmt.Printf("%s Task %d due %s\n", green("✅"), task.ID, task.DueDate.Format("2006-01-02"))
			return nil
		},
	}
}

func estimateCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <id> <hours>",
		Short: "Set task time estimate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			hours, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid hours %q: %w", args[1], err)
			}
			task, err := (*a).engine.SetEstimatedHours(id, hours)
			if err != nil {
				return err
			}
			fmt.Printf("%s Task %d estimated at %.1fh\n", green("✅"), task.ID, hours)
			return nil
		},
	}
}

func generateCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate static HTML board",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := (*a).store.Load()
			if err != nil {
				return err
			}
			gen := render.NewGenerator((*a).cfg.Template, (*a).cfg.Output)
			out, err := gen.Generate(tasks)
			if err != nil {
				return err
			}
			fmt.Printf("📄 Generated: %s\n", out)
			return nil
		},
	}
}

func migrateCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Re-sync all tasks to the backup store",
		RunE: func(cmd *cobra.Command, args []string) error {
			synced, failed, err := (*a).engine.Migrate()
			if err != nil {
				return err
			}
			fmt.Printf("%s Migration complete: %d synced, %d failed\n", green("✅"), synced, failed)
			return nil
		},
	}
}

func botCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "bot [command] [args...]",
		Short: "Handle a chat command and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := bot.New((*a).engine, (*a).store, (*a).cfg.BoardURL)
			if len(args) == 0 {
				fmt.Println(h.Handle("status", nil))
				return nil
			}
			fmt.Println(h.Handle(args[0], args[1:]))
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q: %w", s, err)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", s)
	}
	return t, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
