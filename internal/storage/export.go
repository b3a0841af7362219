package storage

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/san-kum/poresim/internal/sim"
)

// ExportData is the JSON document written by ExportJSON.
type ExportData struct {
	Run    Run         `json:"run"`
	Result *sim.Result `json:"result,omitempty"`
	Checks []Check     `json:"checks"`
	Frames []Frame     `json:"frames"`
}

// ExportJSON writes run id with its checks and frames to path, or to stdout
// when path is empty or "-".
func (s *Store) ExportJSON(ctx context.Context, id, path string) error {
	data, err := s.collect(ctx, id)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (s *Store) collect(ctx context.Context, id string) (*ExportData, error) {
	run, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.LoadResult(ctx, id)
	if err != nil {
		return nil, err
	}
	checks, err := s.LoadChecks(ctx, id)
	if err != nil {
		return nil, err
	}
	frames, err := s.LoadFrames(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range checks {
		checks[i].Errors = finite(checks[i].Errors)
	}
	return &ExportData{Run: *run, Result: res, Checks: checks, Frames: frames}, nil
}

// nanSafe maps non-finite values to JSON null.
func nanSafe(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = &vs[i]
		}
	}
	return out
}

func fromNullable(vs []*float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	return out
}

// finite replaces non-finite values with -1 so the slice encodes.
func finite(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = -1
		}
		out[i] = v
	}
	return out
}

// encodable strips non-finite metrics from a copy of res.
func encodable(res *sim.Result) *sim.Result {
	cp := *res
	cp.Metrics = make(map[string]float64, len(res.Metrics))
	for k, v := range res.Metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			cp.Metrics[k] = v
		}
	}
	cp.PressureDrops = finite(res.PressureDrops)
	return &cp
}
