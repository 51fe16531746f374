package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/ui"
	"pmo-dashboard/internal/workflow"
)

func newTransitionCmd(a *app) *cobra.Command {
	var (
		sub        workflow.Submission
		total      int
		approved   int
		failed     int
		blocked    int
		reportPath string
		plan       bool
	)
	cmd := &cobra.Command{
		Use:   "transition <project-id> <status>",
		Short: "Move a project to another status",
		Long: `Moves a project to <status>. Entering "Em Homologação" needs --version,
--test-type, --env and --tester. Leaving it needs --result and optionally the
test counts or a --report archive. With --plan the form is printed instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "project id")
			if err != nil {
				return err
			}
			sub.Target = models.ProjectStatus(strings.TrimSpace(args[1]))

			c, err := a.authed()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := c.FindProject(ctx, id)
			if err != nil {
				return err
			}

			console := ui.NewConsole(a.out)
			exec := workflow.NewExecutor(c, console, workflow.WithLogger(a.logger))

			if plan {
				form, err := exec.Plan(ctx, p, sub.Target)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(form)
				}
				return printForm(a, form)
			}

			counts := map[string]struct {
				v   int
				dst **int
			}{
				"total":    {total, &sub.Total},
				"approved": {approved, &sub.Approved},
				"failed":   {failed, &sub.Failed},
				"blocked":  {blocked, &sub.Blocked},
			}
			for name, count := range counts {
				if cmd.Flags().Changed(name) {
					v := count.v
					*count.dst = &v
				}
			}

			var report *workflow.ReportFile
			if reportPath != "" {
				f, err := os.Open(reportPath)
				if err != nil {
					return fmt.Errorf("open report: %w", err)
				}
				defer f.Close()
				report = &workflow.ReportFile{Name: filepath.Base(reportPath), Content: f}
			}

			me, err := c.CurrentUser(ctx)
			if err != nil {
				return err
			}
			protocol := workflow.ProtocolFor(p.Status, sub.Target)
			result, err := exec.Execute(ctx, workflow.Request{
				Project:  p,
				Target:   sub.Target,
				Actor:    me,
				Evidence: sub.Evidence(protocol, report),
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(result)
			}
			if result.Project != nil {
				fmt.Fprintf(a.out, "Status atual: %s\n", result.Project.Status)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&sub.Observation, "obs", "", "Observation recorded with a plain status change")
	f.StringVar(&sub.Version, "version", "", "Version under test")
	f.StringVar(&sub.TestType, "test-type", "", "Test type: "+strings.Join(models.TestTypes, ", "))
	f.StringVar(&sub.Environment, "env", "", "Test environment")
	f.Int64Var(&sub.TesterID, "tester", 0, "User ID of the tester")
	f.StringVar((*string)(&sub.Result), "result", "", "Cycle result: Aprovado, Reprovado or Aprovado com Ressalvas")
	f.IntVar(&total, "total", 0, "Total tests")
	f.IntVar(&approved, "approved", 0, "Approved tests")
	f.IntVar(&failed, "failed", 0, "Failed tests")
	f.IntVar(&blocked, "blocked", 0, "Blocked tests")
	f.StringVar(&sub.Observations, "notes", "", "Final notes of the cycle")
	f.StringVar(&reportPath, "report", "", "Test report .zip uploaded after the cycle is finalized")
	f.BoolVar(&plan, "plan", false, "Print the transition form and exit")
	return cmd
}

func printForm(a *app, form *workflow.Form) error {
	fmt.Fprintf(a.out, "%s\n%s\n\n", form.Title, form.Message)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPO\tDESCRIÇÃO\tOBRIGATÓRIO\tOPÇÕES")
	for _, field := range form.Fields {
		opts := make([]string, len(field.Options))
		for i, o := range field.Options {
			opts[i] = o.Label
			if o.Value != o.Label {
				opts[i] = o.Value + "=" + o.Label
			}
		}
		required := ""
		if field.Required {
			required = "sim"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", field.Name, field.Label, required, strings.Join(opts, ", "))
	}
	return tw.Flush()
}

func newTestsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tests <homologation-id>",
		Short: "List the tests executed in a homologation cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "homologation id")
			if err != nil {
				return err
			}
			c, err := a.authed()
			if err != nil {
				return err
			}
			executed, err := c.CycleTests(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(executed)
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTESTE\tSTATUS")
			for _, t := range executed {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Name, t.Status)
			}
			return tw.Flush()
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	var process bool
	cmd := &cobra.Command{
		Use:   "upload <homologation-id> <report.zip>",
		Short: "Attach a test report archive to a finished cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "homologation id")
			if err != nil {
				return err
			}
			if !strings.EqualFold(filepath.Ext(args[1]), ".zip") {
				return fmt.Errorf("o relatório deve ser um arquivo .zip: %s", args[1])
			}
			c, err := a.authed()
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open report: %w", err)
			}
			defer f.Close()

			cycle, err := c.UploadReport(cmd.Context(), id, filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			if process {
				if cycle, err = c.ProcessReport(cmd.Context(), id); err != nil {
					return err
				}
			}
			if a.jsonOut {
				return a.printJSON(cycle)
			}
			fmt.Fprintf(a.out, "Relatório enviado para o ciclo #%d.\n", id)
			if process && cycle != nil {
				fmt.Fprintf(a.out, "%d teste(s) processado(s).\n", len(cycle.ExecutedTests))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&process, "process", false, "Ask the backend to parse the report after upload")
	return cmd
}
