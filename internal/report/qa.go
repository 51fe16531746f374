package report

import (
	"math"

	"pmo-dashboard/internal/models"
)

// CycleSuccessRate returns the reported success rate of a cycle, falling back to
// approved/total. ok is false when neither is available.
func CycleSuccessRate(c *models.HomologationCycle) (rate float64, ok bool) {
	if c.SuccessRate != nil {
		return *c.SuccessRate, true
	}
	return c.ComputedSuccessRate()
}

// QASummaryData condenses the QA report into headline figures.
type QASummaryData struct {
	Cycles      int      `json:"ciclos"`
	AverageRate *float64 `json:"taxa_media,omitempty"`
	LatestRate  *float64 `json:"taxa_ultima,omitempty"`
	TestsByKind []Kind   `json:"testes_por_status"`
}

// Kind is a per-status total across all projects of the distribution chart.
type Kind struct {
	Label string  `json:"label"`
	Total float64 `json:"total"`
}

// QASummary computes averages over the historical success series and totals
// per dataset of the per-project distribution.
func QASummary(r models.QAReport) QASummaryData {
	s := QASummaryData{Cycles: len(r.SuccessHistory.Data), TestsByKind: []Kind{}}
	if n := len(r.SuccessHistory.Data); n > 0 {
		sum := 0.0
		for _, v := range r.SuccessHistory.Data {
			sum += v
		}
		avg := math.Round(sum/float64(n)*100) / 100
		last := r.SuccessHistory.Data[n-1]
		s.AverageRate, s.LatestRate = &avg, &last
	}
	for _, ds := range r.ProjectDistribution.Datasets {
		k := Kind{Label: ds.Label}
		for _, v := range ds.Data {
			k.Total += v
		}
		s.TestsByKind = append(s.TestsByKind, k)
	}
	return s
}

// PortfolioTotals are the headline numbers across all strategic objectives.
type PortfolioTotals struct {
	Objectives    int     `json:"objetivos"`
	Projects      int     `json:"projetos"`
	EstimatedCost float64 `json:"custo_total_estimado"`
}

// SummarizePortfolio sums project counts and estimated cost over objectives.
// A project linked to several objectives is counted once per objective.
func SummarizePortfolio(objs []models.PortfolioObjective) PortfolioTotals {
	t := PortfolioTotals{Objectives: len(objs)}
	for _, o := range objs {
		t.Projects += o.TotalProjects
		t.EstimatedCost += o.TotalEstimatedCost
	}
	return t
}

// HasStatusChart reports whether an objective carries data for its status doughnut.
func HasStatusChart(o *models.PortfolioObjective) bool {
	ds := o.StatusChart.Datasets
	return len(ds) > 0 && len(ds[0].Data) > 0
}
