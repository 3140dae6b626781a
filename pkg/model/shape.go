package model

// RecursionShape summarizes how a function calls itself.
type RecursionShape string

const (
	RecursionNone RecursionShape = "none"
	// RecursionLinear is one recursive call per invocation on a constant
	// decrement of the input.
	RecursionLinear RecursionShape = "linear"
	// RecursionBranching is two or more recursive calls per invocation.
	RecursionBranching RecursionShape = "branching"
	// RecursionDivideAndConquer recurses on a halved or partitioned input.
	RecursionDivideAndConquer RecursionShape = "divide-and-conquer"
)

// LibraryKind identifies a known standard routine with a fixed cost.
type LibraryKind string

const (
	LibrarySort   LibraryKind = "sort"
	LibrarySearch LibraryKind = "search"
)

// LibraryCall is a call site of a known sort or search routine. LoopDepth is
// the number of input-bounded loops enclosing the call.
type LibraryCall struct {
	Routine   string      `json:"routine"`
	Kind      LibraryKind `json:"kind"`
	LoopDepth int         `json:"loop_depth"`
	Span      Span        `json:"span"`
}

// ControlFlowShape is the per-function summary the complexity classifier
// works from. Front ends fill it in; it never holds syntax.
type ControlFlowShape struct {
	// LoopDepth is the maximum nesting of loops whose bound depends on an
	// input-sized collection or parameter.
	LoopDepth int `json:"loop_depth"`

	Recursion RecursionShape `json:"recursion"`
	// RecursiveCalls is the largest number of self-calls that can execute in
	// one invocation.
	RecursiveCalls int `json:"recursive_calls,omitempty"`
	// RecursionInLoop is set when a self-call sits inside an input-bounded loop.
	RecursionInLoop bool `json:"recursion_in_loop,omitempty"`
	// DropsLoopElement is set when such a self-call receives the input with
	// the current loop element removed, e.g. items[:i]+items[i+1:].
	DropsLoopElement bool `json:"drops_loop_element,omitempty"`
	// Memoized is set when results are cached across recursive calls.
	Memoized bool `json:"memoized,omitempty"`
	// CombinesLinearly is set when work outside the recursive calls scales
	// with the input (a merge step, for instance).
	CombinesLinearly bool `json:"combines_linearly,omitempty"`

	LibraryCalls []LibraryCall `json:"library_calls,omitempty"`
}
