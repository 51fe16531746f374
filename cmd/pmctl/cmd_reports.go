package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/report"
	"pmo-dashboard/pkg/xlsxexport"
)

// groupAliases maps the short names accepted by --by to Project JSON keys.
var groupAliases = map[string]string{
	"status":      report.KeyStatus,
	"prioridade":  report.KeyPriority,
	"priority":    report.KeyPriority,
	"responsavel": report.KeyOwner,
	"owner":       report.KeyOwner,
	"area":        report.KeyArea,
}

func resolveKeys(by []string) []string {
	keys := make([]string, 0, len(by))
	seen := make(map[string]bool, len(by))
	for _, raw := range by {
		k := strings.ToLower(strings.TrimSpace(raw))
		if alias, ok := groupAliases[k]; ok {
			k = alias
		}
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func (a *app) printTable(title string, t report.FrequencyTable) error {
	fmt.Fprintf(a.out, "\n%s\n", title)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for i, label := range t.Labels {
		fmt.Fprintf(tw, "  %s\t%d\n", label, t.Data[i])
	}
	return tw.Flush()
}

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate reports",
	}
	cmd.AddCommand(newOverviewCmd(a), newPortfolioCmd(a), newQACmd(a))
	return cmd
}

func newOverviewCmd(a *app) *cobra.Command {
	var (
		filters report.Filters
		by      []string
	)
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Counts by status, priority, owner and area",
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
			projects = report.Filter(projects, filters)
			ov := report.Overview(projects)

			tables := map[string]report.FrequencyTable{}
			keys := resolveKeys(by)
			for _, k := range keys {
				tables[k] = report.GroupBy(projects, k)
			}
			if a.jsonOut {
				return a.printJSON(map[string]any{"visao_geral": ov, "tabelas": tables})
			}

			fmt.Fprintf(a.out, "Total: %d  Ativos: %d  Concluídos: %d\n", ov.Stats.Total, ov.Stats.Active, ov.Stats.Completed)
			sections := []struct {
				title string
				table report.FrequencyTable
			}{
				{"Por status", ov.ByStatus},
				{"Por prioridade", ov.ByPriority},
				{"Por responsável", ov.ByOwner},
				{"Por área solicitante", ov.ByArea},
			}
			for _, s := range sections {
				if err := a.printTable(s.title, s.table); err != nil {
					return err
				}
			}
			for _, k := range keys {
				if err := a.printTable("Por "+k, tables[k]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filters.Search, "query", "q", "", "Search name or ticket number")
	cmd.Flags().StringVar(&filters.Status, "status", "", "Only projects in this status")
	cmd.Flags().StringSliceVar(&by, "by", nil, "Extra frequency tables by Project field (status, prioridade, responsavel, area or any JSON key)")
	return cmd
}

// requireFullReports fails early for roles the backend would refuse.
func (a *app) requireFullReports(cmd *cobra.Command) (*apiclient.Client, error) {
	c, err := a.authed()
	if err != nil {
		return nil, err
	}
	me, err := c.CurrentUser(cmd.Context())
	if err != nil {
		return nil, err
	}
	if !auth.CanViewFullReports(me) {
		return nil, fmt.Errorf("o perfil %s não tem acesso aos relatórios completos", me.Role)
	}
	return c, nil
}

func newPortfolioCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Projects and estimated cost per strategic objective",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.requireFullReports(cmd)
			if err != nil {
				return err
			}
			objs, err := c.PortfolioReport(cmd.Context())
			if err != nil {
				return err
			}
			totals := report.SummarizePortfolio(objs)
			if a.jsonOut {
				return a.printJSON(map[string]any{"objetivos": objs, "totais": totals})
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "OBJETIVO\tPROJETOS\tCUSTO ESTIMADO")
			for _, o := range objs {
				fmt.Fprintf(tw, "%s\t%d\t%.2f\n", o.Name, o.TotalProjects, o.TotalEstimatedCost)
			}
			fmt.Fprintf(tw, "TOTAL (%d)\t%d\t%.2f\n", totals.Objectives, totals.Projects, totals.EstimatedCost)
			return tw.Flush()
		},
	}
}

func newQACmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "qa",
		Short: "Homologation success history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.requireFullReports(cmd)
			if err != nil {
				return err
			}
			qa, err := c.QAReport(cmd.Context())
			if err != nil {
				return err
			}
			if qa == nil {
				qa = &models.QAReport{}
			}
			summary := report.QASummary(*qa)
			if a.jsonOut {
				return a.printJSON(map[string]any{"relatorio": qa, "resumo": summary})
			}
			fmt.Fprintf(a.out, "Ciclos: %d\n", summary.Cycles)
			if summary.AverageRate != nil {
				fmt.Fprintf(a.out, "Taxa média de sucesso: %.2f%%\n", *summary.AverageRate)
				fmt.Fprintf(a.out, "Última taxa: %.2f%%\n", *summary.LatestRate)
			}
			for _, k := range summary.TestsByKind {
				fmt.Fprintf(a.out, "  %s: %.0f\n", k.Label, k.Total)
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		filters report.Filters
		by      []string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the project list to an .xlsx workbook",
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
			groupBy := xlsxexport.DefaultGroupings
			if len(by) > 0 {
				groupBy = resolveKeys(by)
			}

			var buf bytes.Buffer
			summary, err := xlsxexport.WriteProjects(&buf, report.Filter(projects, filters), xlsxexport.Options{
				Now:     a.now(),
				GroupBy: groupBy,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			a.logger.Info("workbook written", zap.String("path", out), zap.Int("projects", summary.Projects))
			fmt.Fprintf(a.out, "%d projeto(s) exportado(s) para %s (%d planilha(s)).\n", summary.Projects, out, len(summary.Sheets))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filters.Search, "query", "q", "", "Search name or ticket number")
	cmd.Flags().StringVar(&filters.Status, "status", "", "Only projects in this status")
	cmd.Flags().StringSliceVar(&by, "by", nil, "Frequency sheets to add (default: status, prioridade, responsavel, area)")
	cmd.Flags().StringVarP(&out, "out", "o", "projetos.xlsx", "Output file")
	return cmd
}
