package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/health"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/report"
	"pmo-dashboard/internal/workflow"
)

func parseIDArg(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, raw)
	}
	return id, nil
}

func (a *app) printCards(cards []report.Card) error {
	if a.jsonOut {
		return a.printJSON(cards)
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJETO\tSTATUS\tPRIORIDADE\tRESPONSÁVEL\tSAÚDE")
	for _, c := range cards {
		owner := c.Owner
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s: %s\n", c.ID, c.Name, c.Status, c.Priority, owner, c.Health.Level, c.Health.Description)
	}
	return tw.Flush()
}

func newProjectsCmd(a *app) *cobra.Command {
	var filters report.Filters
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects with their health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			projects, err := c.Projects(cmd.Context())
			if err != nil {
				return err
			}
			view := report.NewView(projects)
			view.SetFilters(filters)
			cards := report.Cards(view.Visible(), a.now())

			if !a.jsonOut {
				s := report.Summarize(projects)
				fmt.Fprintf(a.out, "Total: %d  Ativos: %d  Concluídos: %d\n\n", s.Total, s.Active, s.Completed)
			}
			return a.printCards(cards)
		},
	}
	cmd.Flags().StringVarP(&filters.Search, "query", "q", "", "Search name or ticket number")
	cmd.Flags().StringVar(&filters.Status, "status", "", "Only projects in this status")
	return cmd
}

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project <id>",
		Short: "Show a project's KPIs, history and allowed transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "project id")
			if err != nil {
				return err
			}
			c, err := a.authed()
			if err != nil {
				return err
			}

			var (
				p  *models.Project
				me *models.User
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				var err error
				p, err = c.FindProject(ctx, id)
				return err
			})
			g.Go(func() error {
				var err error
				me, err = c.CurrentUser(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			now := a.now()
			h := health.Classify(p, now)
			if a.jsonOut {
				return a.printJSON(map[string]any{
					"projeto":   p,
					"saude":     h,
					"prazo":     health.Deadline(p, now),
					"historico": p.History(),
				})
			}

			fmt.Fprintf(a.out, "#%d %s [%s]\n", p.ID, p.Name, p.Status)
			fmt.Fprintf(a.out, "Saúde: %s (%s)\n", h.Description, h.Level)
			fmt.Fprintf(a.out, "Prazo: %s\n", health.Deadline(p, now))
			if cycle := p.OpenCycle(); cycle != nil {
				fmt.Fprintf(a.out, "Ciclo aberto: #%d versão %s em %s\n", cycle.ID, cycle.Version, cycle.Environment)
			}

			if history := p.History(); len(history) > 0 {
				fmt.Fprintln(a.out, "\nHistórico:")
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				for _, e := range history {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", models.DatePart(e.Timestamp), e.Status, e.Observation)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if auth.CanChangeStatus(me, p) && len(p.NextStatuses) > 0 {
				fmt.Fprintln(a.out, "\nPróximos status:")
				for _, next := range p.NextStatuses {
					fmt.Fprintf(a.out, "  %s (%s)\n", next, workflow.ProtocolFor(p.Status, next))
				}
			}
			return nil
		},
	}
	cmd.AddCommand(newProjectCreateCmd(a), newProjectEditCmd(a), newProjectDeleteCmd(a))
	return cmd
}

func newMineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "Show my open tasks and active projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			var (
				myTasks    []models.Task
				myProjects []models.Project
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				var err error
				myTasks, err = c.MyTasks(ctx)
				return err
			})
			g.Go(func() error {
				var err error
				myProjects, err = c.MyProjects(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			now := a.now()
			items := report.MyTasks(myTasks, now)
			cards := report.Cards(myProjects, now)
			if a.jsonOut {
				return a.printJSON(map[string]any{"tarefas": items, "projetos": cards})
			}

			fmt.Fprintln(a.out, "Minhas tarefas:")
			if len(items) == 0 {
				fmt.Fprintln(a.out, "  Nenhuma tarefa pendente.")
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			for _, t := range items {
				flag := ""
				if t.Overdue {
					flag = "ATRASADA"
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", t.Name, t.ProjectName, t.End, flag)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "\nMeus projetos:")
			return a.printCards(cards)
		},
	}
}

func newRoadmapCmd(a *app) *cobra.Command {
	var filters report.Filters
	cmd := &cobra.Command{
		Use:   "roadmap",
		Short: "List the planned span of every dated project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authed()
			if err != nil {
				return err
			}
			projects, err := c.Projects(cmd.Context())
			if err != nil {
				return err
			}
			bars := report.Roadmap(report.Filter(projects, filters))
			if a.jsonOut {
				return a.printJSON(bars)
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PROJETO\tINÍCIO\tFIM")
			for _, b := range bars {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, b.Start, b.End)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&filters.Search, "query", "q", "", "Search name or ticket number")
	cmd.Flags().StringVar(&filters.Status, "status", "", "Only projects in this status")
	return cmd
}
