package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskrunner/internal/app"
	"github.com/aatumaykin/taskrunner/internal/manager"
	"github.com/aatumaykin/taskrunner/internal/task"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long: `Add, list, remove, toggle and run tasks in the configured store.
These commands do not start the scheduler. Every write reloads the stored
document under a file lock, so a running "taskrunner serve" keeps the
changes and schedules them on its next write or restart.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRemove,
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <name>",
	Short: "Enable or disable a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskToggle,
}

var taskRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Execute a task now",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRun,
}

var addFlags struct {
	taskType  string
	schedule  string
	sourceDir string
	daysOld   int
	pattern   string
	backupDir string
	message   string
}

// withManager opens the configured store, runs fn and closes the store.
func withManager(fn func(m *manager.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	mgr, st, err := app.BuildManager(cfg, nil, log)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(mgr)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return withManager(func(m *manager.Manager) error {
		printTasks(cmd.OutOrStdout(), m)
		return nil
	})
}

func printTasks(w io.Writer, m *manager.Manager) {
	names := m.Names()
	if len(names) == 0 {
		fmt.Fprintln(w, "No tasks defined")
		return
	}

	tasks := m.List()
	for _, name := range names {
		t := tasks[name]
		status := "enabled"
		if !t.Enabled {
			status = "disabled"
		}
		lastRun := "never"
		if t.LastRun != nil {
			lastRun = t.LastRun.Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\tlast run: %s\n", name, t.Type, t.Schedule, status, lastRun)
		if t.LastResult != nil {
			fmt.Fprintf(w, "\t%s\n", *t.LastResult)
		}
	}
	fmt.Fprintf(w, "Total: %d\n", len(names))
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	req := manager.AddRequest{
		Name:     args[0],
		Type:     addFlags.taskType,
		Schedule: addFlags.schedule,
		Params: task.Params{
			SourceDir:   addFlags.sourceDir,
			FilePattern: addFlags.pattern,
			BackupDir:   addFlags.backupDir,
			Message:     addFlags.message,
		},
	}
	if cmd.Flags().Changed("days-old") {
		days := addFlags.daysOld
		req.DaysOld = &days
	}

	return withManager(func(m *manager.Manager) error {
		if err := m.Add(cmd.Context(), req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %q added\n", args[0])
		return nil
	})
}

func runTaskRemove(cmd *cobra.Command, args []string) error {
	return withManager(func(m *manager.Manager) error {
		ok, err := m.Remove(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("task %q not found", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %q removed\n", args[0])
		return nil
	})
}

func runTaskToggle(cmd *cobra.Command, args []string) error {
	return withManager(func(m *manager.Manager) error {
		ok, err := m.Toggle(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("task %q not found", args[0])
		}
		t, _ := m.Get(args[0])
		state := "enabled"
		if !t.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %q %s\n", args[0], state)
		return nil
	})
}

func runTaskRun(cmd *cobra.Command, args []string) error {
	return withManager(func(m *manager.Manager) error {
		ok, err := m.Execute(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("task %q not found or disabled", args[0])
		}
		t, _ := m.Get(args[0])
		if t.LastResult != nil {
			fmt.Fprintln(cmd.OutOrStdout(), *t.LastResult)
		}
		return nil
	})
}

func init() {
	f := taskAddCmd.Flags()
	f.StringVarP(&addFlags.taskType, "type", "t", "", "Task type: cleanup, backup or alert")
	f.StringVarP(&addFlags.schedule, "schedule", "s", "", `Schedule: "every N m", "every N h", "every day" or "HH:MM"`)
	f.StringVar(&addFlags.sourceDir, "source-dir", "", "Directory to clean or back up")
	f.IntVar(&addFlags.daysOld, "days-old", task.DefaultDaysOld, "Cleanup: delete files older than this many days")
	f.StringVar(&addFlags.pattern, "pattern", "", "Cleanup: glob pattern of files to delete (default *)")
	f.StringVar(&addFlags.backupDir, "backup-dir", "", "Backup: directory receiving backup folders")
	f.StringVarP(&addFlags.message, "message", "m", "", "Alert: message to log")
	_ = taskAddCmd.MarkFlagRequired("type")
	_ = taskAddCmd.MarkFlagRequired("schedule")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	taskCmd.AddCommand(taskToggleCmd)
	taskCmd.AddCommand(taskRunCmd)
}
