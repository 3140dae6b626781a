package analysis

import (
	"fmt"
	"sort"

	"github.com/ritzau/codegraph/pkg/complexity"
	"github.com/ritzau/codegraph/pkg/cycles"
	"github.com/ritzau/codegraph/pkg/graph"
	"github.com/ritzau/codegraph/pkg/model"
)

// AssembleOptions configure Assemble.
type AssembleOptions struct {
	Classifier *complexity.Classifier
	Threshold  model.ComplexityClass
	Workers    int
	Verify     bool
}

// Assemble builds the result for a complete set of parsed units. It is a pure
// function of its inputs: the order of units and diagnostics does not matter.
//
// It fails only with an error wrapping model.ErrInvariantViolation.
func Assemble(units []*model.SourceUnit, diagnostics []model.Diagnostic, opts AssembleOptions) (*model.AnalysisResult, error) {
	if opts.Classifier == nil {
		opts.Classifier = complexity.New()
	}
	units = uniqueUnits(units)

	fg := graph.Build(units)
	if opts.Verify {
		if err := verifyDeterministic(fg, units); err != nil {
			return nil, err
		}
	}

	found, err := cycles.FindCycles(fg)
	if err != nil {
		return nil, err
	}

	fns := opts.Classifier.ClassifyAll(units, complexity.Options{
		Threshold: opts.Threshold,
		Workers:   opts.Workers,
	})

	diags := append([]model.Diagnostic{}, diagnostics...)
	sort.Slice(diags, func(i, j int) bool {
		if diags[i].Path != diags[j].Path {
			return diags[i].Path < diags[j].Path
		}
		if diags[i].Kind != diags[j].Kind {
			return diags[i].Kind < diags[j].Kind
		}
		return diags[i].Message < diags[j].Message
	})

	return &model.AnalysisResult{
		Nodes:        fg.Nodes,
		Dependencies: fg.Edges,
		External:     fg.External,
		Cycles:       found,
		Complexity:   fns,
		Diagnostics:  diags,
		Metrics: model.Metrics{
			TotalFiles:              len(fg.Nodes),
			TotalFunctions:          len(fns),
			DependencyCount:         len(fg.Edges),
			CircularDependencyCount: len(found),
			AverageComplexity:       complexity.Average(fns),
			ExternalDependencyCount: len(fg.External),
		},
	}, nil
}

// uniqueUnits sorts by path and keeps the first unit per path.
func uniqueUnits(units []*model.SourceUnit) []*model.SourceUnit {
	out := make([]*model.SourceUnit, 0, len(units))
	for _, u := range units {
		if u != nil {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	uniq := out[:0]
	for _, u := range out {
		if len(uniq) > 0 && uniq[len(uniq)-1].Path == u.Path {
			continue
		}
		uniq = append(uniq, u)
	}
	return uniq
}

func verifyDeterministic(fg *graph.FileGraph, units []*model.SourceUnit) error {
	reversed := make([]*model.SourceUnit, len(units))
	for i, u := range units {
		reversed[len(units)-1-i] = u
	}
	if again := graph.Build(reversed); again.Fingerprint() != fg.Fingerprint() {
		return fmt.Errorf("%w: graph differs when units are supplied in reverse order", model.ErrInvariantViolation)
	}
	return nil
}
