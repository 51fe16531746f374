package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/projects"
	"pmo-dashboard/internal/ui"
)

// projectFlags holds the project form flags. Only flags the user set are
// copied onto a draft, so edits keep every other field.
type projectFlags struct {
	d    projects.Draft
	cost float64
}

func (f *projectFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.d.Name, "name", "", "Project name")
	fl.StringVar(&f.d.Description, "desc", "", "Description")
	fl.StringVar(&f.d.TicketNumber, "ticket", "", "TopDesk ticket number")
	fl.Int64Var(&f.d.OwnerID, "owner", 0, "User ID of the owner")
	fl.Int64Var(&f.d.AreaID, "area", 0, "Requesting area ID")
	fl.StringVar(&f.d.Priority, "priority", "", "Baixa, Média, Alta or Crítica")
	fl.StringVar(&f.d.Complexity, "complexity", "", "Baixa, Média or Alta")
	fl.StringVar(&f.d.Risk, "risk", "", "Baixo, Médio or Alto")
	fl.Float64Var(&f.cost, "cost", 0, "Estimated cost")
	fl.StringVar(&f.d.PlannedStart, "start", "", "Planned start (YYYY-MM-DD)")
	fl.StringVar(&f.d.PlannedEnd, "end", "", "Planned end (YYYY-MM-DD)")
	fl.Int64SliceVar(&f.d.TeamIDs, "team", nil, "User IDs of the team")
	fl.Int64SliceVar(&f.d.ObjectiveIDs, "objectives", nil, "Strategic objective IDs")
	fl.StringVar(&f.d.DocumentationLink, "doc", "", "Documentation link")
}

func (f *projectFlags) apply(cmd *cobra.Command, d *projects.Draft) {
	setters := map[string]func(){
		"name":       func() { d.Name = f.d.Name },
		"desc":       func() { d.Description = f.d.Description },
		"ticket":     func() { d.TicketNumber = f.d.TicketNumber },
		"owner":      func() { d.OwnerID = f.d.OwnerID },
		"area":       func() { d.AreaID = f.d.AreaID },
		"priority":   func() { d.Priority = f.d.Priority },
		"complexity": func() { d.Complexity = f.d.Complexity },
		"risk":       func() { d.Risk = f.d.Risk },
		"cost":       func() { cost := f.cost; d.EstimatedCost = &cost },
		"start":      func() { d.PlannedStart = f.d.PlannedStart },
		"end":        func() { d.PlannedEnd = f.d.PlannedEnd },
		"team":       func() { d.TeamIDs = f.d.TeamIDs },
		"objectives": func() { d.ObjectiveIDs = f.d.ObjectiveIDs },
		"doc":        func() { d.DocumentationLink = f.d.DocumentationLink },
	}
	for name, set := range setters {
		if cmd.Flags().Changed(name) {
			set()
		}
	}
}

func (a *app) projectFlows(c *apiclient.Client) *projects.Flows {
	return projects.New(c, ui.NewConsole(a.out), projects.WithLogger(a.logger))
}

func newProjectCreateCmd(a *app) *cobra.Command {
	var flags projectFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project in Em Definição",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			me, err := c.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			var d projects.Draft
			flags.apply(cmd, &d)
			p, err := a.projectFlows(c).Create(cmd.Context(), me, d)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(p)
			}
			if p != nil {
				fmt.Fprintf(a.out, "Projeto #%d em %s.\n", p.ID, p.Status)
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

// projectAndMe loads the project named by raw and the caller.
func (a *app) projectAndMe(cmd *cobra.Command, c *apiclient.Client, raw string) (*models.Project, *models.User, error) {
	id, err := parseIDArg(raw, "project id")
	if err != nil {
		return nil, nil, err
	}
	p, err := c.FindProject(cmd.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	me, err := c.CurrentUser(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return p, me, nil
}

func newProjectEditCmd(a *app) *cobra.Command {
	var flags projectFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a project's fields; omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			p, me, err := a.projectAndMe(cmd, c, args[0])
			if err != nil {
				return err
			}
			d := projects.DraftFrom(p)
			flags.apply(cmd, &d)
			updated, err := a.projectFlows(c).Edit(cmd.Context(), me, p, d)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(updated)
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newProjectDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			p, me, err := a.projectAndMe(cmd, c, args[0])
			if err != nil {
				return err
			}
			err = a.projectFlows(c).Delete(cmd.Context(), me, p, a.confirmer(yes))
			if errors.Is(err, projects.ErrNotConfirmed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
