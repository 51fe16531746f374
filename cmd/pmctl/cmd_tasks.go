package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/tasks"
	"pmo-dashboard/internal/ui"
)

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, edit and delete project tasks",
	}
	cmd.AddCommand(newTaskCreateCmd(a), newTaskEditCmd(a), newTaskDeleteCmd(a))
	return cmd
}

func newTaskCreateCmd(a *app) *cobra.Command {
	var (
		draft    tasks.Draft
		assignee int64
		fromTest int64
	)
	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create a task",
		Long: `Creates a task under a project. With --from-test the name and description
are drafted from a failed test of the project's cycles; dates are still required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseIDArg(args[0], "project id")
			if err != nil {
				return err
			}
			c, err := a.authed()
			if err != nil {
				return err
			}
			if assignee > 0 {
				draft.AssigneeID = &assignee
			}

			flows := tasks.New(c, ui.NewConsole(a.out), tasks.WithLogger(a.logger))
			var task *models.Task
			if fromTest > 0 {
				test, err := findExecutedTest(cmd, c, projectID, fromTest)
				if err != nil {
					return err
				}
				drafted := tasks.FromFailedTest(*test)
				drafted.Start, drafted.End, drafted.AssigneeID = draft.Start, draft.End, draft.AssigneeID
				if draft.Name != "" {
					drafted.Name = draft.Name
				}
				task, err = flows.CreateFromFailedTest(cmd.Context(), projectID, drafted)
				if err != nil {
					return err
				}
			} else if task, err = flows.Create(cmd.Context(), projectID, draft); err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(task)
			}
			if task == nil {
				fmt.Fprintln(a.out, "Tarefa criada.")
				return nil
			}
			fmt.Fprintf(a.out, "Tarefa %s criada.\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&draft.Name, "name", "", "Task name")
	cmd.Flags().StringVar(&draft.Start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&draft.End, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&draft.Description, "desc", "", "Description")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "User ID of the assignee")
	cmd.Flags().Int64Var(&fromTest, "from-test", 0, "Draft the task from this failed test execution ID")
	return cmd
}

// findExecutedTest looks testID up among the cycles of projectID, newest cycle first.
func findExecutedTest(cmd *cobra.Command, c *apiclient.Client, projectID, testID int64) (*models.ExecutedTest, error) {
	ctx := cmd.Context()
	p, err := c.FindProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := len(p.HomologationCycles) - 1; i >= 0; i-- {
		executed, err := c.CycleTests(ctx, p.HomologationCycles[i].ID)
		if err != nil {
			return nil, err
		}
		for _, t := range executed {
			if t.ID == testID {
				if !t.Failed() {
					return nil, fmt.Errorf("o teste %d não falhou (status %s)", testID, t.Status)
				}
				return &t, nil
			}
		}
	}
	return nil, fmt.Errorf("teste %d não encontrado nos ciclos do projeto %d", testID, projectID)
}

func newTaskEditCmd(a *app) *cobra.Command {
	var (
		edit     tasks.Edit
		progress int
		assignee int64
	)
	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Rename a task, set its progress or reassign it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("progress") {
				edit.Progress = &progress
			}
			if assignee > 0 {
				edit.AssigneeID = &assignee
			}
			task, err := tasks.New(c, ui.NewConsole(a.out), tasks.WithLogger(a.logger)).
				Edit(cmd.Context(), strings.TrimSpace(args[0]), edit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(task)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&edit.Name, "name", "", "Task name")
	cmd.Flags().IntVar(&progress, "progress", 0, "Progress between 0 and 100")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "User ID of the assignee")
	return cmd
}

func newTaskDeleteCmd(a *app) *cobra.Command {
	var (
		name string
		yes  bool
	)
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			task := models.Task{ID: strings.TrimSpace(args[0]), Name: name}
			if task.Name == "" {
				task.Name = "#" + task.ID
			}
			err = tasks.New(c, ui.NewConsole(a.out), tasks.WithLogger(a.logger)).Delete(cmd.Context(), task, a.confirmer(yes))
			if errors.Is(err, tasks.ErrNotConfirmed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Task name shown in the confirmation prompt")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
