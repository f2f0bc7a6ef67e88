package telegram

import (
	"fmt"
	"strings"

	"golang-stock-forecaster/internal/forecaster/dto"
)

// FormatRunReport renders a run report as a Telegram Markdown message.
func FormatRunReport(report *dto.RunReport, status string) string {
	var b strings.Builder

	var icon string
	switch status {
	case "COMPLETED":
		icon = "✅"
	case "PARTIAL":
		icon = "⚠️"
	default:
		icon = "❌"
	}

	b.WriteString(fmt.Sprintf("%s *Forecast Run %s*\n", icon, status))
	b.WriteString(fmt.Sprintf("Horizon: %d days, pairs: %d, succeeded: %d\n",
		report.HorizonDays, len(report.Outcomes), report.Succeeded()))

	if report.Reconcile != nil {
		b.WriteString(fmt.Sprintf("Store: %d inserted, %d updated, %d unchanged\n",
			report.Reconcile.Inserted, report.Reconcile.Updated, report.Reconcile.Unchanged))
	}
	if report.StoreError != "" {
		b.WriteString(fmt.Sprintf("Store error: %s\n", report.StoreError))
	}

	var problems []string
	for _, o := range report.Outcomes {
		if o.Status != dto.PairStatusSuccess {
			problems = append(problems, fmt.Sprintf("  - %s/%s: %s (%s)", o.Symbol, o.Method, o.Status, o.Reason))
		} else if o.Warning != "" {
			problems = append(problems, fmt.Sprintf("  - %s/%s: degraded", o.Symbol, o.Method))
		}
	}
	if len(problems) > 0 {
		b.WriteString("Attention:\n")
		b.WriteString(strings.Join(problems, "\n"))
	}

	return b.String()
}
