package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"LabPulse/internal/domain/models"
)

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// writeReport prints risk, anomaly and forecast tables.
func writeReport(w io.Writer, rep *report) error {
	if _, err := fmt.Fprintf(w, "Analyzed %d readings\n\n", rep.Readings); err != nil {
		return err
	}
	if err := writeRiskTable(w, rep.Risk); err != nil {
		return err
	}
	if err := writeAnomalyTable(w, rep.Anomalies); err != nil {
		return err
	}
	if err := writeForecastTable(w, rep.Forecasts); err != nil {
		return err
	}
	names := make([]string, 0, len(rep.Skipped))
	for k := range rep.Skipped {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if _, err := fmt.Fprintf(w, "skipped %s: %s\n", k, rep.Skipped[k]); err != nil {
			return err
		}
	}
	return nil
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	return table
}

func render(table *tablewriter.Table, rows [][]string) error {
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeRiskTable(w io.Writer, risk models.RiskResult) error {
	table := newTable(w, "Category", "Factor", "Value", "Points")
	var rows [][]string
	for _, c := range []struct {
		label string
		cat   models.RiskCategory
	}{
		{"Diabetes", risk.Diabetes},
		{"Cardiovascular", risk.Cardiovascular},
	} {
		for _, f := range c.cat.Factors {
			rows = append(rows, []string{c.label, f.Name, fmtFloat(f.Value), strconv.Itoa(f.Points)})
		}
		rows = append(rows, []string{c.label, "SCORE", "", strconv.Itoa(c.cat.Score)})
	}
	return render(table, rows)
}

func writeAnomalyTable(w io.Writer, flags []models.AnomalyFlag) error {
	if len(flags) == 0 {
		_, err := fmt.Fprintln(w, "No anomalies flagged")
		return err
	}
	table := newTable(w, "Biomarker", "Value", "Z", "Severity", "Recorded")
	rows := make([][]string, 0, len(flags))
	for _, f := range flags {
		rows = append(rows, []string{f.Name, fmtFloat(f.Value), fmtFloat(f.ZScore), f.Severity, f.RecordedAt.Format(time.DateOnly)})
	}
	return render(table, rows)
}

func writeForecastTable(w io.Writer, forecasts map[string]models.ForecastResult) error {
	if len(forecasts) == 0 {
		_, err := fmt.Fprintln(w, "No forecasts (need at least 2 readings per biomarker)")
		return err
	}
	names := make([]string, 0, len(forecasts))
	for k := range forecasts {
		names = append(names, k)
	}
	sort.Strings(names)

	table := newTable(w, "Biomarker", "Slope/s", "Next", "Next+1", "Next+2", "Warning")
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		fr := forecasts[name]
		row := []string{name, fmtFloat(fr.Slope)}
		for _, p := range fr.Forecast {
			row = append(row, fmt.Sprintf("%s @ %s", fmtFloat(p.Value), p.Date.Format(time.DateOnly)))
		}
		warning := "-"
		if fr.Warning != nil {
			warning = *fr.Warning
		}
		rows = append(rows, append(row, warning))
	}
	return render(table, rows)
}
