package metrics

import (
	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

type KPIStatus string

const (
	KPIStatusOnTarget KPIStatus = "on_target"
	KPIStatusAtRisk   KPIStatus = "at_risk"
	KPIStatusCritical KPIStatus = "critical"
)

type KPIResult struct {
	ID         string          `json:"id"`
	MetricName string          `json:"metric_name"`
	Category   string          `json:"category"`
	Direction  core.Direction  `json:"direction"`
	Value      decimal.Decimal `json:"value"`
	Target     decimal.Decimal `json:"target"`
	Progress   decimal.Decimal `json:"progress"`
	Status     KPIStatus       `json:"status"`
}

type KPISummary struct {
	Items        []KPIResult     `json:"items"`
	OverallScore decimal.Decimal `json:"overall_score"`
	OnTarget     int             `json:"on_target"`
	AtRisk       int             `json:"at_risk"`
	Critical     int             `json:"critical"`
}

// KPIProgress is value as a percentage of target, 0 for non-positive targets.
func KPIProgress(value, target decimal.Decimal) decimal.Decimal {
	return percentOf(value, target)
}

// ClassifyKPI bands progress according to the KPI direction.
func ClassifyKPI(progress decimal.Decimal, dir core.Direction) KPIStatus {
	if dir.OrDefault() == core.LowerIsBetter {
		switch {
		case progress.LessThanOrEqual(KPIOnTargetLower):
			return KPIStatusOnTarget
		case progress.LessThanOrEqual(KPIAtRiskLower):
			return KPIStatusAtRisk
		default:
			return KPIStatusCritical
		}
	}
	switch {
	case progress.GreaterThanOrEqual(KPIOnTarget):
		return KPIStatusOnTarget
	case progress.GreaterThanOrEqual(KPIAtRisk):
		return KPIStatusAtRisk
	default:
		return KPIStatusCritical
	}
}

// SummarizeKPIs scores every KPI. The overall score is the plain mean of
// the individual progress values.
func SummarizeKPIs(entries []core.KpiEntry) KPISummary {
	s := KPISummary{Items: make([]KPIResult, 0, len(entries)), OverallScore: decimal.Zero}
	if len(entries) == 0 {
		return s
	}
	total := decimal.Zero
	for _, e := range entries {
		progress := KPIProgress(e.Value, e.Target)
		dir := e.Direction.OrDefault()
		status := ClassifyKPI(progress, dir)
		switch status {
		case KPIStatusOnTarget:
			s.OnTarget++
		case KPIStatusAtRisk:
			s.AtRisk++
		default:
			s.Critical++
		}
		total = total.Add(progress)
		s.Items = append(s.Items, KPIResult{
			ID:         e.ID,
			MetricName: e.MetricName,
			Category:   e.Category,
			Direction:  dir,
			Value:      e.Value,
			Target:     e.Target,
			Progress:   progress,
			Status:     status,
		})
	}
	s.OverallScore = total.Div(decimal.NewFromInt(int64(len(entries))))
	return s
}
