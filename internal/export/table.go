// Package export renders visit plans as text tables, CSV and XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldops/internal/model"
)

// Table is a header plus string rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// PlanTable flattens a visit plan, one row per recommendation in rank
// order.
func PlanTable(plan *model.VisitPlan) Table {
	t := Table{Header: []string{
		"rank", "dealer_id", "dealer_name", "city", "priority", "priority_score",
		"suggested_action", "overdue_amount", "days_overdue", "days_since_last_order",
		"days_since_last_visit", "expiring_commitments", "health_score", "reasons",
	}}
	for i, r := range plan.Recommendations {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1),
			r.DealerID,
			r.DealerName,
			r.City,
			r.Priority,
			strconv.FormatFloat(r.PriorityScore, 'f', 2, 64),
			r.SuggestedAction,
			r.OverdueAmount.StringFixed(2),
			strconv.Itoa(r.DaysOverdue),
			strconv.Itoa(r.DaysSinceLastOrder),
			strconv.Itoa(r.DaysSinceLastVisit),
			strconv.Itoa(r.ExpiringCommitments),
			strconv.FormatFloat(r.HealthScore, 'f', 1, 64),
			strings.Join(r.Reasons, "; "),
		})
	}
	return t
}

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

// WritePlanText prints a plan as an aligned table for terminals.
func WritePlanText(w io.Writer, plan *model.VisitPlan) error {
	if _, err := fmt.Fprintf(w, "Visit plan for %s on %s (%d active dealers)\n\n",
		plan.SalesPersonID, plan.PlanDate, plan.TotalActiveDealers); err != nil {
		return eris.Wrap(err, "export: write plan header")
	}
	if _, err := fmt.Fprintf(w, "%-4s %-30s %-7s %7s  %s\n", "#", "Dealer", "Prio", "Score", "Action"); err != nil {
		return eris.Wrap(err, "export: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 80)); err != nil {
		return eris.Wrap(err, "export: write table separator")
	}

	for i, r := range plan.Recommendations {
		name := r.DealerName
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		if _, err := fmt.Fprintf(w, "%-4d %-30s %-7s %7.2f  %s\n", i+1, name, r.Priority, r.PriorityScore, r.SuggestedAction); err != nil {
			return eris.Wrap(err, "export: write table row")
		}
		for _, reason := range r.Reasons {
			if _, err := fmt.Fprintf(w, "%-4s   - %s\n", "", reason); err != nil {
				return eris.Wrap(err, "export: write table row")
			}
		}
	}
	return nil
}
