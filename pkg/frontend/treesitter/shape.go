package treesitter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/codegraph/pkg/model"
)

// grammar describes the node types the shape analysis needs from one
// tree-sitter grammar.
type grammar struct {
	loops    map[string]bool
	branches map[string]bool
	// armWrappers hold the arms of a branch one level down (switch bodies).
	armWrappers map[string]bool
	calls       map[string]bool
	numbers     map[string]bool
	idents      map[string]bool
	// declParents introduce names through their "left" or "name" field.
	declParents map[string]bool
	// boundaries are nested named declarations analyzed on their own.
	boundaries map[string]bool
	// builtins may appear in a constant loop header, e.g. Python's range.
	builtins map[string]bool
	// assignments maps an assignment node type to its target and value fields.
	assignments map[string][2]string

	// extraLevels reports loop levels added by constructs that are not loop
	// statements, such as comprehensions.
	extraLevels func(g *grammar, n *sitter.Node, src []byte) int
	library     func(callee string) (model.LibraryKind, bool)
}

var conditionFields = set("condition", "value", "initializer", "subject")

// callee returns the function expression of a call as written.
func (g *grammar) callee(call *sitter.Node, src []byte) string {
	fn := field(call, "function")
	if fn == nil {
		fn = field(call, "constructor")
	}
	return strings.Join(strings.Fields(text(fn, src)), "")
}

// levels reports how many input-bounded loop levels n opens.
func (g *grammar) levels(n *sitter.Node, src []byte) int {
	if g.loops[n.Type()] {
		if g.inputBounded(n, src) {
			return 1
		}
		return 0
	}
	if g.extraLevels != nil {
		return g.extraLevels(g, n, src)
	}
	return 0
}

// inputBounded reports whether a loop's trip count can depend on input. A
// header counts as constant when it has a numeric literal and every other
// name in it is a loop variable or an allowed builtin.
func (g *grammar) inputBounded(loop *sitter.Node, src []byte) bool {
	header := loopHeader(loop)
	vars := make(map[string]bool)
	for _, name := range g.loopVars(loop, src) {
		vars[name] = true
	}
	hasNumber := false
	for _, h := range header {
		walk(h, func(n *sitter.Node) bool {
			hasNumber = hasNumber || g.numbers[n.Type()]
			return !hasNumber
		})
	}
	if !hasNumber {
		return true
	}
	for _, h := range header {
		for _, id := range identifiers(h, src, g.idents) {
			if !vars[id] && !g.builtins[id] {
				return true
			}
		}
	}
	return false
}

// loopHeader returns the children of a loop other than its body.
func loopHeader(loop *sitter.Node) []*sitter.Node {
	var header []*sitter.Node
	for i := range int(loop.ChildCount()) {
		switch loop.FieldNameForChild(i) {
		case "body", "alternative":
			continue
		}
		if c := loop.Child(i); c != nil {
			header = append(header, c)
		}
	}
	return header
}

// loopVars returns the names a loop header declares.
func (g *grammar) loopVars(loop *sitter.Node, src []byte) []string {
	var vars []string
	if g.declParents[loop.Type()] {
		vars = append(vars, g.declared(loop, src)...)
	}
	for _, h := range loopHeader(loop) {
		walk(h, func(n *sitter.Node) bool {
			if g.declParents[n.Type()] {
				vars = append(vars, g.declared(n, src)...)
			}
			return true
		})
	}
	return vars
}

func (g *grammar) declared(n *sitter.Node, src []byte) []string {
	var names []string
	for _, f := range []string{"left", "name"} {
		names = append(names, identifiers(field(n, f), src, g.idents)...)
	}
	return names
}

var (
	halvingRe = regexp.MustCompile(`/\s*2\b|>>\s*1\b|\b(?:mid|half|middle|pivot)\w*`)
	memoRe    = regexp.MustCompile(`\b(?:memo\w*|cache\w*|lru_cache|dp)\b`)
)

// shapeInput is one function to analyze.
type shapeInput struct {
	body *sitter.Node
	// selfNames are the spellings of a call to the function itself.
	selfNames map[string]bool
	// scope is the source searched for memoization, decorators included.
	scope *sitter.Node
}

type shapeWalk struct {
	g     *grammar
	src   []byte
	in    shapeInput
	shape *model.ControlFlowShape
	args  []string
	// inLoop are the self-calls made inside input-bounded loops.
	inLoop []loopCall
}

// loopCall is a self-call together with the variables of its enclosing loops.
type loopCall struct {
	args string
	vars []string
}

// analyzeShape summarizes the control flow of one function body.
func (g *grammar) analyzeShape(src []byte, in shapeInput) *model.ControlFlowShape {
	w := &shapeWalk{g: g, src: src, in: in, shape: &model.ControlFlowShape{Recursion: model.RecursionNone}}
	if in.body == nil {
		return w.shape
	}
	w.visit(in.body, 0, nil)

	if len(w.args) == 0 {
		return w.shape
	}

	calls := max(w.count(in.body, true)+w.maxReturn(in.body), 1)
	w.shape.RecursiveCalls = calls
	switch {
	case w.halves():
		w.shape.Recursion = model.RecursionDivideAndConquer
	case calls >= 2:
		w.shape.Recursion = model.RecursionBranching
	default:
		w.shape.Recursion = model.RecursionLinear
	}
	w.shape.CombinesLinearly = w.shape.LoopDepth >= 1 || calls >= 2
	w.shape.DropsLoopElement = w.dropsLoopElement()
	scope := in.scope
	if scope == nil {
		scope = in.body
	}
	w.shape.Memoized = memoRe.MatchString(text(scope, src))
	return w.shape
}

func (w *shapeWalk) visit(n *sitter.Node, depth int, vars []string) {
	if w.g.boundaries[n.Type()] {
		return
	}
	if l := w.g.levels(n, w.src); l > 0 {
		depth += l
		w.shape.LoopDepth = max(w.shape.LoopDepth, depth)
		if w.g.loops[n.Type()] {
			vars = append(slices.Clip(vars), w.g.loopVars(n, w.src)...)
		}
	}
	if w.g.calls[n.Type()] {
		callee := w.g.callee(n, w.src)
		if w.in.selfNames[callee] {
			args := text(field(n, "arguments"), w.src)
			w.args = append(w.args, args)
			if depth > 0 {
				w.shape.RecursionInLoop = true
				w.inLoop = append(w.inLoop, loopCall{args: args, vars: vars})
			}
		} else if w.g.library != nil {
			if kind, ok := w.g.library(callee); ok {
				w.shape.LibraryCalls = append(w.shape.LibraryCalls, model.LibraryCall{
					Routine:   callee,
					Kind:      kind,
					LoopDepth: depth,
					Span:      spanOf(n),
				})
			}
		}
	}
	for i := range int(n.ChildCount()) {
		if c := n.Child(i); c != nil {
			w.visit(c, depth, vars)
		}
	}
}

// count returns the largest number of self-calls one execution of n can
// make. Mutually exclusive arms contribute their maximum. With skipReturns
// set, return statements are left to maxReturn since only one of them runs.
func (w *shapeWalk) count(n *sitter.Node, skipReturns bool) int {
	if w.g.boundaries[n.Type()] || skipReturns && n.Type() == "return_statement" {
		return 0
	}
	c := 0
	if w.g.calls[n.Type()] && w.in.selfNames[w.g.callee(n, w.src)] {
		c = 1
	}
	if !w.g.branches[n.Type()] {
		for i := range int(n.ChildCount()) {
			if child := n.Child(i); child != nil {
				c += w.count(child, skipReturns)
			}
		}
		return c
	}

	best := 0
	for i := range int(n.ChildCount()) {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if conditionFields[n.FieldNameForChild(i)] {
			c += w.count(child, skipReturns)
			continue
		}
		if w.g.armWrappers[child.Type()] {
			for _, arm := range namedChildren(child) {
				best = max(best, w.count(arm, skipReturns))
			}
			continue
		}
		best = max(best, w.count(child, skipReturns))
	}
	return c + best
}

// maxReturn returns the most self-calls made by a single return statement.
func (w *shapeWalk) maxReturn(body *sitter.Node) int {
	most := 0
	walk(body, func(n *sitter.Node) bool {
		if w.g.boundaries[n.Type()] {
			return false
		}
		if n.Type() == "return_statement" {
			most = max(most, w.count(n, false))
			return false
		}
		return true
	})
	return most
}

// halves reports whether any self-call receives a halved or partitioned
// input, directly or through a local derived from one.
func (w *shapeWalk) halves() bool {
	derived := w.derivedLocals()
	for _, a := range w.args {
		if halvingRe.MatchString(a) {
			return true
		}
		for name := range derived {
			if containsWord(a, name) {
				return true
			}
		}
	}
	return false
}

// derivedLocals returns the names assigned from halving expressions.
func (w *shapeWalk) derivedLocals() map[string]bool {
	return w.derived(halvingRe.MatchString)
}

// dropsLoopElement reports whether a self-call inside a loop receives the
// input without the element the loop is at, directly or through a local.
func (w *shapeWalk) dropsLoopElement() bool {
	if len(w.inLoop) == 0 {
		return false
	}
	var all []string
	for _, c := range w.inLoop {
		all = append(all, c.vars...)
	}
	shrunk := w.derived(func(value string) bool { return removesElement(value, all) })
	for _, c := range w.inLoop {
		if removesElement(c.args, c.vars) {
			return true
		}
		for name := range shrunk {
			if containsWord(c.args, name) {
				return true
			}
		}
	}
	return false
}

// removalForms are the ways of writing "the collection without element v",
// with %s standing for v: slicing around it, splicing or removing it, and
// filtering on inequality with it.
var removalForms = []string{
	`\[\s*:\s*%s\s*\]`,
	`\[\s*%s\s*\+\s*1\s*:`,
	`slice\(\s*0\s*,\s*%s\s*\)`,
	`slice\(\s*%s\s*\+\s*1\b`,
	`\b(?:splice|remove|discard|delete|without)\(\s*(?:\w+\s*,\s*)?%s\b`,
	`\b%s\s*!==?`,
	`!==?\s*%s\b`,
}

func removesElement(expr string, vars []string) bool {
	for _, v := range vars {
		if v == "_" || !containsWord(expr, v) {
			continue
		}
		q := regexp.QuoteMeta(v)
		for _, form := range removalForms {
			if regexp.MustCompile(fmt.Sprintf(form, q)).MatchString(expr) {
				return true
			}
		}
	}
	return false
}

// derived returns the locals assigned from a value matching taint, directly
// or through a local assigned earlier.
func (w *shapeWalk) derived(taint func(value string) bool) map[string]bool {
	derived := make(map[string]bool)
	walk(w.in.body, func(n *sitter.Node) bool {
		if w.g.boundaries[n.Type()] {
			return false
		}
		fields, ok := w.g.assignments[n.Type()]
		if !ok {
			return true
		}
		value := text(field(n, fields[1]), w.src)
		tainted := taint(value)
		for name := range derived {
			if tainted {
				break
			}
			tainted = containsWord(value, name)
		}
		if tainted {
			for _, id := range identifiers(field(n, fields[0]), w.src, w.g.idents) {
				derived[id] = true
			}
		}
		return true
	})
	return derived
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// selfNames returns the call spellings that reach a function named name
// through any of the given receivers.
func selfNames(name string, receivers ...string) map[string]bool {
	names := map[string]bool{name: true}
	for _, r := range receivers {
		if r != "" {
			names[r+"."+name] = true
		}
	}
	return names
}
