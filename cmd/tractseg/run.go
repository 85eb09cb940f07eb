package main

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tractseg/internal/metrics"
	"tractseg/internal/models"
	"tractseg/pkg/atlas"
	"tractseg/pkg/config"
	"tractseg/pkg/connectivity"
	"tractseg/pkg/criteria"
	"tractseg/pkg/recipe"
	"tractseg/pkg/tractometry"
)

type paths struct {
	recipe     string
	tractogram string
	atlas      string
	grid       string
	output     string
}

// run loads the inputs, executes the recipe and writes the report.
func run(cfg *config.Config, p paths, log *zap.Logger) (*models.Report, error) {
	if cfg.Metrics.Enabled {
		metrics.RegisterSegmentationMetrics()
	}

	rec, err := recipe.Load(p.recipe)
	if err != nil {
		return nil, err
	}

	var tractDoc models.TractogramDocument
	if err := models.ReadJSON(p.tractogram, &tractDoc); err != nil {
		return nil, errors.Wrap(err, "tractogram")
	}
	in := recipe.Inputs{Tractogram: tractDoc.Tractogram(), Names: atlas.LookupTable{}}

	if p.atlas != "" {
		var atlasDoc models.AtlasDocument
		if err := models.ReadJSON(p.atlas, &atlasDoc); err != nil {
			return nil, errors.Wrap(err, "atlas")
		}
		a, lut, err := atlasDoc.Atlas()
		if err != nil {
			return nil, errors.Wrapf(err, "atlas %s", p.atlas)
		}
		in.Atlas, in.Names = a, lut
	}
	for l, name := range cfg.Connectivity.Names {
		in.Names[l] = name
	}

	if p.grid != "" {
		var header models.GridHeader
		if err := models.ReadJSON(p.grid, &header); err != nil {
			return nil, errors.Wrap(err, "grid")
		}
		g, err := header.Grid()
		if err != nil {
			return nil, errors.Wrapf(err, "grid %s", p.grid)
		}
		in.Grid = g
	}

	mode, err := criteria.ParseNodeMode(cfg.Processing.NodeMode)
	if err != nil {
		return nil, err
	}
	runner := recipe.NewRunner(recipe.Options{
		Criteria: criteria.Params{
			Workers:   cfg.Processing.NumWorkers,
			Tolerance: cfg.Processing.ToleranceMM,
		},
		Connectivity: connectivity.Params{
			Symmetric: cfg.Connectivity.Symmetric,
			Labels:    cfg.Connectivity.Labels,
			Workers:   cfg.Processing.NumWorkers,
		},
		NodeMode: mode,
	}, log)

	started := time.Now()
	outcome, err := runner.Run(context.Background(), rec, in)
	if err != nil {
		return nil, err
	}

	report := buildReport(outcome, in, cfg)
	report.Started = started
	if err := models.WriteJSON(p.output, report, cfg.Output.Indent); err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		logMetrics(log)
	}
	return report, nil
}

// buildReport converts a recipe outcome into the output document.
func buildReport(o *recipe.Outcome, in recipe.Inputs, cfg *config.Config) *models.Report {
	report := &models.Report{
		RunID:       o.RunID,
		Streamlines: in.Tractogram.Len(),
	}

	for _, s := range o.Segments {
		seg := models.SegmentReport{Name: s.Name, Expression: s.Expression, Status: models.StatusOK}
		if s.Err != nil {
			seg.Status = models.StatusFailed
			seg.Error = s.Err.Error()
			report.Segments = append(report.Segments, seg)
			continue
		}
		seg.Count = s.Result.Count()
		if cfg.Output.IncludeIndices {
			seg.Indices = s.Result.Indices()
		}
		if seg.Count > 0 {
			profile, err := tractometry.Describe(in.Tractogram, s.Result, cfg.Processing.NumWorkers)
			if err == nil {
				seg.LengthMM = stats(profile.Length)
				seg.Efficiency = stats(profile.Efficiency)
			}
		}
		report.Segments = append(report.Segments, seg)
	}

	if m := o.Mapping; m != nil {
		conn := &models.ConnectivityReport{
			Symmetric: m.Symmetric(),
			Labels:    m.Labels(),
			Names:     m.Names(in.Names),
			Matrix:    m.Matrix(),
		}
		for _, p := range m.Pairs() {
			conn.Buckets = append(conn.Buckets, models.Bucket{
				A:     p.A,
				B:     p.B,
				Name:  in.Names.Name(p.A) + "-" + in.Names.Name(p.B),
				Count: m.Count(p.A, p.B),
			})
		}
		report.Connectivity = conn
	}
	return report
}

func stats(s tractometry.Summary) *models.Stats {
	return &models.Stats{
		Count:  s.Count,
		Mean:   s.Mean,
		StdDev: s.StdDev,
		Min:    s.Min,
		Median: s.Median,
		Max:    s.Max,
	}
}

// logMetrics writes a snapshot of the tractseg counters.
func logMetrics(log *zap.Logger) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Warn("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "tractseg_") {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		log.Info("metric", zap.String("name", mf.GetName()), zap.Float64("value", total))
	}
}
