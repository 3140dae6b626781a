// Package complexity estimates the asymptotic cost of functions from their
// control-flow shape.
//
// The estimate is a heuristic and not a proof. Three rules run independently
// and the largest class wins: loop nesting, recursion shape and known
// library calls. An unrecognized shape falls back to the loop estimate, and
// classification never fails.
package complexity

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/ritzau/codegraph/pkg/model"
	"github.com/sourcegraph/conc/pool"
)

// Reason prefixes attached to a classification.
const (
	ReasonLoopNesting = "loop-nesting"
	ReasonRecursion   = "recursion"
	ReasonLibrary     = "library"
)

// Pattern is one entry of the recursion catalog. Patterns are tried in order
// and the first match decides the recursion class.
type Pattern struct {
	Name  string
	Match func(*model.ControlFlowShape) bool
	Class func(*model.ControlFlowShape) model.ComplexityClass
}

// DefaultPatterns is the recursion catalog. The memoized and permutation
// entries come first so they can override the plain shape.
var DefaultPatterns = []Pattern{
	{
		Name: "memoized",
		Match: func(s *model.ControlFlowShape) bool {
			return s.Recursion != model.RecursionNone && s.Memoized
		},
		Class: constant(model.Linear),
	},
	{
		// Recursing once per element on the input minus that element
		// enumerates arrangements. A self-call in a loop over children or
		// neighbours does not qualify and stays linear.
		Name: "permutation",
		Match: func(s *model.ControlFlowShape) bool {
			return s.RecursionInLoop && s.DropsLoopElement &&
				(s.Recursion == model.RecursionLinear || s.Recursion == model.RecursionBranching)
		},
		Class: constant(model.Factorial),
	},
	{
		Name:  string(model.RecursionLinear),
		Match: recursionIs(model.RecursionLinear),
		Class: constant(model.Linear),
	},
	{
		Name:  string(model.RecursionDivideAndConquer),
		Match: recursionIs(model.RecursionDivideAndConquer),
		Class: func(s *model.ControlFlowShape) model.ComplexityClass {
			if s.CombinesLinearly {
				return model.Linearithmic
			}
			return model.Logarithmic
		},
	},
	{
		Name:  string(model.RecursionBranching),
		Match: recursionIs(model.RecursionBranching),
		Class: constant(model.Exponential),
	},
}

func constant(c model.ComplexityClass) func(*model.ControlFlowShape) model.ComplexityClass {
	return func(*model.ControlFlowShape) model.ComplexityClass { return c }
}

func recursionIs(shape model.RecursionShape) func(*model.ControlFlowShape) bool {
	return func(s *model.ControlFlowShape) bool { return s.Recursion == shape }
}

// Result is one classification.
type Result struct {
	Class  model.ComplexityClass
	Reason string
}

// Classifier applies the rules. The zero value is not usable; call New.
type Classifier struct {
	patterns []Pattern
}

// New returns a classifier whose catalog is extra followed by DefaultPatterns.
func New(extra ...Pattern) *Classifier {
	patterns := make([]Pattern, 0, len(extra)+len(DefaultPatterns))
	patterns = append(patterns, extra...)
	patterns = append(patterns, DefaultPatterns...)
	return &Classifier{patterns: patterns}
}

type candidate struct {
	fired bool
	Result
}

// Classify returns the class of one function. A nil shape is O(1).
func (c *Classifier) Classify(shape *model.ControlFlowShape) Result {
	if shape == nil {
		return Result{Class: model.Constant, Reason: loopReason(0)}
	}

	// Tie order: recursion, library, loops.
	candidates := []candidate{
		c.recursionRule(shape),
		libraryRule(shape),
		loopRule(shape),
	}

	top := model.Constant
	for _, cand := range candidates {
		if cand.fired {
			top = model.MaxClass(top, cand.Class)
		}
	}
	for _, cand := range candidates {
		if cand.fired && cand.Class.Compare(top) == 0 {
			return cand.Result
		}
	}
	return candidates[len(candidates)-1].Result
}

func loopReason(depth int) string {
	return ReasonLoopNesting + ":" + strconv.Itoa(depth)
}

func loopRule(s *model.ControlFlowShape) candidate {
	d := max(s.LoopDepth, 0)
	return candidate{fired: true, Result: Result{Class: model.Polynomial(d), Reason: loopReason(d)}}
}

func (c *Classifier) recursionRule(s *model.ControlFlowShape) candidate {
	if s.Recursion == "" || s.Recursion == model.RecursionNone {
		return candidate{}
	}
	for _, p := range c.patterns {
		if p.Match(s) {
			return candidate{fired: true, Result: Result{Class: p.Class(s), Reason: ReasonRecursion + ":" + p.Name}}
		}
	}
	return candidate{}
}

// libraryRule prices each known sort or search call by the loops around it
// and keeps the most expensive one.
func libraryRule(s *model.ControlFlowShape) candidate {
	var best candidate
	for _, call := range s.LibraryCalls {
		class := LibraryCost(call.Kind, call.LoopDepth)
		if !best.fired || class.Exceeds(best.Class) {
			best = candidate{fired: true, Result: Result{Class: class, Reason: ReasonLibrary + ":" + string(call.Kind)}}
		}
	}
	return best
}

// LibraryCost is the class of a library call nested in depth input-bounded
// loops. There are no n^k·log n classes: a nested sort costing n^(depth+1)·log n
// rounds down to O(n^(depth+1)), and a search under two or more loops rounds
// up to the same class.
func LibraryCost(kind model.LibraryKind, depth int) model.ComplexityClass {
	switch {
	case depth <= 0 && kind == model.LibrarySearch:
		return model.Logarithmic
	case depth <= 0:
		return model.Linearithmic
	case depth == 1 && kind == model.LibrarySearch:
		return model.Linearithmic
	default:
		return model.Polynomial(depth + 1)
	}
}

// Warning returns the message attached to a class above threshold, or "".
func Warning(class, threshold model.ComplexityClass) string {
	if !class.Exceeds(threshold) {
		return ""
	}
	return fmt.Sprintf("Consider optimizing - complexity is %s", class)
}

// Options control ClassifyAll.
type Options struct {
	Threshold model.ComplexityClass
	Workers   int
}

// ClassifyAll classifies every function-kind symbol of units in parallel.
// The result is sorted by file, line, column and function name.
func (c *Classifier) ClassifyAll(units []*model.SourceUnit, opts Options) []model.FunctionComplexity {
	type job struct {
		file string
		sym  model.Symbol
	}
	var jobs []job
	for _, u := range units {
		if u == nil {
			continue
		}
		for _, fn := range u.Functions() {
			jobs = append(jobs, job{file: u.Path, sym: fn})
		}
	}

	results := make([]model.FunctionComplexity, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i, j := range jobs {
		p.Go(func() {
			r := c.Classify(j.sym.Shape)
			results[i] = model.FunctionComplexity{
				Function:   j.sym.Name,
				File:       j.file,
				Line:       j.sym.Span.Line,
				Column:     j.sym.Span.Column,
				Complexity: r.Class,
				Reason:     r.Reason,
				Warning:    Warning(r.Class, opts.Threshold),
			}
		})
	}
	p.Wait()

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Function < b.Function
	})
	return results
}

// Average is the mean class of results on the 1..8 score scale, rounded to
// the nearest class. An empty slice averages to O(1).
func Average(results []model.FunctionComplexity) model.ComplexityClass {
	if len(results) == 0 {
		return model.Constant
	}
	total := 0
	for _, r := range results {
		total += r.Complexity.Score()
	}
	return model.ClassForScore(int(math.Round(float64(total) / float64(len(results)))))
}
