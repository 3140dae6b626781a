package cycles

import (
	"slices"

	"gonum.org/v1/gonum/graph"
)

// TarjanSCC finds strongly connected components with Tarjan's algorithm.
// Nodes and successors are visited in ascending ID order so the result is
// the same on every run.
type TarjanSCC struct {
	g     graph.Directed
	next  int
	state map[int64]*visit
	stack []int64
	found [][]int64
}

// visit is the bookkeeping for one discovered node.
type visit struct {
	index, low int
	onStack    bool
}

// NewTarjanSCC prepares a search over g.
func NewTarjanSCC(g graph.Directed) *TarjanSCC {
	return &TarjanSCC{g: g, state: make(map[int64]*visit)}
}

// FindSCCs returns every component with more than one node. Members of each
// component are sorted by ID.
func (t *TarjanSCC) FindSCCs() [][]int64 {
	for _, id := range sortedIDs(t.g.Nodes()) {
		if t.state[id] == nil {
			t.connect(id)
		}
	}
	return t.found
}

func (t *TarjanSCC) connect(id int64) *visit {
	v := &visit{index: t.next, low: t.next, onStack: true}
	t.next++
	t.state[id] = v
	t.stack = append(t.stack, id)

	for _, succ := range sortedIDs(t.g.From(id)) {
		switch w := t.state[succ]; {
		case w == nil:
			v.low = min(v.low, t.connect(succ).low)
		case w.onStack:
			v.low = min(v.low, w.index)
		}
	}

	if v.low != v.index {
		return v
	}
	// id roots a component; everything above it on the stack belongs to it.
	i := slices.Index(t.stack, id)
	members := slices.Clone(t.stack[i:])
	t.stack = t.stack[:i]
	for _, m := range members {
		t.state[m].onStack = false
	}
	if len(members) > 1 {
		slices.Sort(members)
		t.found = append(t.found, members)
	}
	return v
}

func sortedIDs(nodes graph.Nodes) []int64 {
	ids := make([]int64, 0, max(nodes.Len(), 0))
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	slices.Sort(ids)
	return ids
}
