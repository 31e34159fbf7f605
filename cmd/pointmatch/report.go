package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"pointsetmatch/internal/models"
	"pointsetmatch/pkg/matching"
)

// pair links a source landmark to the target landmark it was matched with
type pair struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// report is the printable summary of one matching run
type report struct {
	SourcePoints           int         `yaml:"sourcePoints"`
	TargetPoints           int         `yaml:"targetPoints"`
	MatchedPoints          int         `yaml:"matchedPoints"`
	Pairs                  []pair      `yaml:"pairs"`
	DistanceError          float64     `yaml:"distanceError"`
	TolerableDistanceError float64     `yaml:"tolerableDistanceError"`
	WithinTolerance        bool        `yaml:"withinTolerance"`
	AmbiguityDistanceError float64     `yaml:"ambiguityDistanceError"`
	Ambiguous              bool        `yaml:"ambiguous"`
	Degraded               bool        `yaml:"degraded"`
	Transform              [][]float64 `yaml:"transform,omitempty"`
}

func newReport(source, target models.FiducialList, result matching.Result, includeTransform bool) report {
	r := report{
		SourcePoints:           len(source.Fiducials),
		TargetPoints:           len(target.Fiducials),
		MatchedPoints:          len(result.SourceIndices),
		DistanceError:          result.DistanceError,
		TolerableDistanceError: result.TolerableDistanceError,
		WithinTolerance:        result.WithinTolerance,
		AmbiguityDistanceError: result.AmbiguityDistanceError,
		Ambiguous:              result.Ambiguous,
		Degraded:               result.Degraded,
	}
	for i, s := range result.SourceIndices {
		r.Pairs = append(r.Pairs, pair{
			Source: source.Fiducials[s].Label,
			Target: target.Fiducials[result.TargetIndices[i]].Label,
		})
	}
	if includeTransform {
		m := result.Transform.Matrix4()
		rows, cols := m.Dims()
		for i := 0; i < rows; i++ {
			row := make([]float64, cols)
			for j := range row {
				row[j] = m.At(i, j)
			}
			r.Transform = append(r.Transform, row)
		}
	}
	return r
}

func (r report) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

func (r report) writeText(w io.Writer) error {
	lines := []string{
		fmt.Sprintf("Source points: %d, target points: %d, matched: %d", r.SourcePoints, r.TargetPoints, r.MatchedPoints),
		fmt.Sprintf("RMS distance error: %.4f (tolerable %.4f, within tolerance: %t)", r.DistanceError, r.TolerableDistanceError, r.WithinTolerance),
		fmt.Sprintf("Ambiguous: %t (ambiguity distance %.4f)", r.Ambiguous, r.AmbiguityDistanceError),
	}
	if r.Degraded {
		lines = append(lines, "Warning: point counts differ too much, points were paired in input order")
	}
	for _, p := range r.Pairs {
		lines = append(lines, fmt.Sprintf("  %s -> %s", p.Source, p.Target))
	}
	for _, row := range r.Transform {
		lines = append(lines, fmt.Sprintf("  [% .6f % .6f % .6f % .6f]", row[0], row[1], row[2], row[3]))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
