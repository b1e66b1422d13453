package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"LabPulse/internal/domain/models"
	"LabPulse/internal/repository"
	"LabPulse/internal/services/analytics"
	"LabPulse/internal/usecase"
	xhttp "LabPulse/pkg/http"
	xutil "LabPulse/pkg/util"
)

type analyzeOptions struct {
	file    string
	server  string
	user    int64
	name    string
	since   string
	format  string
	timeout time.Duration
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run forecast, risk and anomaly analysis over a reading set",
		Long: `Loads readings from a JSON file (--file) or a running LabPulse server
(--server, --user) and prints risk scores, anomaly flags and forecasts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (opts.file == "") == (opts.server == "") {
				return fmt.Errorf("exactly one of --file or --server is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			var (
				readings []models.Reading
				err      error
			)
			if opts.file != "" {
				readings, err = readingsFromFile(opts.file)
			} else {
				readings, err = readingsFromServer(ctx, opts.server, opts.user)
			}
			if err != nil {
				return err
			}

			if opts.since != "" {
				since, ok := xutil.ParseTime(opts.since)
				if !ok {
					return fmt.Errorf("invalid --since %q", opts.since)
				}
				readings = recordedSince(readings, since)
			}

			rep, err := analyze(ctx, readings, opts.name)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return writeReport(cmd.OutOrStdout(), rep)
		},
	}

	defaultUser := int64(xutil.ParseIntDefault(os.Getenv("LABPULSE_USER"), 1))
	f := cmd.Flags()
	f.StringVar(&opts.file, "file", "", "JSON file with readings (array or {\"readings\": [...]})")
	f.StringVar(&opts.server, "server", "", "base URL of a LabPulse server, e.g. http://localhost:8080")
	f.Int64Var(&opts.user, "user", defaultUser, "user id sent as "+xhttp.HeaderUserID+" with --server")
	f.StringVar(&opts.name, "name", "", "forecast only biomarkers whose name contains this value")
	f.StringVar(&opts.since, "since", "", "ignore readings recorded before this date")
	f.StringVar(&opts.format, "format", "table", "output format: table or json")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}

// fileReading is the lenient on-disk shape: lab exports carry dates in
// several layouts and ids as strings or numbers.
type fileReading struct {
	ID         interface{} `json:"id"`
	Name       string      `json:"name"`
	Value      float64     `json:"value"`
	Unit       string      `json:"unit"`
	RefMin     *float64    `json:"ref_min"`
	RefMax     *float64    `json:"ref_max"`
	RecordedAt string      `json:"recorded_at"`
}

func readingsFromFile(path string) ([]models.Reading, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}
	return parseReadings(b)
}

func parseReadings(b []byte) ([]models.Reading, error) {
	var raw []fileReading
	if err := json.Unmarshal(b, &raw); err != nil {
		var wrapped struct {
			Readings []fileReading `json:"readings"`
		}
		if werr := json.Unmarshal(b, &wrapped); werr != nil {
			return nil, fmt.Errorf("parse readings: %w", err)
		}
		raw = wrapped.Readings
	}

	out := make([]models.Reading, 0, len(raw))
	for i, fr := range raw {
		t, ok := xutil.ParseTime(fr.RecordedAt)
		if !ok {
			return nil, fmt.Errorf("reading %d (%s): invalid recorded_at %q", i, fr.Name, fr.RecordedAt)
		}
		id := strconv.Itoa(i + 1)
		switch v := fr.ID.(type) {
		case string:
			if v != "" {
				id = v
			}
		case float64:
			id = strconv.FormatFloat(v, 'f', -1, 64)
		}
		out = append(out, models.Reading{
			ID:         id,
			Name:       xutil.NormalizeName(fr.Name),
			Value:      fr.Value,
			Unit:       fr.Unit,
			RefMin:     fr.RefMin,
			RefMax:     fr.RefMax,
			RecordedAt: t.UTC(),
		})
	}
	return out, nil
}

func readingsFromServer(ctx context.Context, baseURL string, userID int64) ([]models.Reading, error) {
	client := xhttp.NewClient(
		xhttp.WithBaseURL(baseURL),
		xhttp.WithHeader(xhttp.HeaderUserID, strconv.FormatInt(userID, 10)),
	)
	var rows []models.Reading
	list := xhttp.ListDataResponse{Rows: &rows}
	if err := client.GetData(ctx, "/api/biomarkers", map[string][]string{"limit": {"50000"}}, &list); err != nil {
		return nil, fmt.Errorf("fetch readings: %w", err)
	}
	return rows, nil
}

func recordedSince(readings []models.Reading, since time.Time) []models.Reading {
	out := readings[:0]
	for _, r := range readings {
		if !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

// report is everything analyze prints.
type report struct {
	Readings  int                              `json:"readings"`
	Risk      models.RiskResult                `json:"risk"`
	Anomalies []models.AnomalyFlag             `json:"anomalies"`
	Forecasts map[string]models.ForecastResult `json:"forecasts"`
	Skipped   map[string]string                `json:"skipped,omitempty"`
}

// cliUser scopes the in-memory store; the CLI only ever analyzes one subject.
const cliUser int64 = 1

// analyze runs the same use cases the API serves over an in-memory store.
func analyze(ctx context.Context, readings []models.Reading, name string) (*report, error) {
	store := repository.NewMemoryStore()
	batch := make([]*models.Reading, 0, len(readings))
	for i := range readings {
		r := readings[i]
		r.UserID = cliUser
		batch = append(batch, &r)
	}
	if err := store.StoreBatch(ctx, batch); err != nil {
		return nil, err
	}

	ba := usecase.NewBiomarkerAnalytics(store,
		analytics.NewTrendForecaster(),
		analytics.NewRuleRiskScorer(),
		analytics.NewZScoreDetector(),
		0,
	)
	rep := &report{Readings: len(readings), Forecasts: map[string]models.ForecastResult{}}

	if name != "" {
		fr, err := ba.Forecast(ctx, cliUser, name)
		if err != nil {
			rep.Skipped = map[string]string{name: err.Error()}
		} else {
			rep.Forecasts[name] = fr
		}
		risk, err := ba.RiskScores(ctx, cliUser)
		if err != nil {
			return nil, err
		}
		rep.Risk = risk
		if rep.Anomalies, err = ba.Anomalies(ctx, cliUser); err != nil {
			return nil, err
		}
		return rep, nil
	}

	ins, err := usecase.NewInsightsUseCase(ba, 0).GetInsights(ctx, usecase.GetInsightsParams{UserID: cliUser, MinPoints: 2})
	if err != nil {
		return nil, err
	}
	if len(ins.Errors) > 0 {
		rep.Skipped = ins.Errors
	}
	if ins.Risk != nil {
		rep.Risk = *ins.Risk
	}
	rep.Anomalies = ins.Anomalies
	for k, v := range ins.Forecasts {
		rep.Forecasts[k] = v
	}
	return rep, nil
}
