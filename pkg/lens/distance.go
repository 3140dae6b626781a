package lens

import (
	"sort"

	"github.com/ritzau/codegraph/pkg/model"
)

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	nodeID   string
	distance int
}

// ComputeDistances calculates the shortest distance from each node to the
// nearest selected node, following dependencies in both directions. Nodes
// that cannot be reached are absent from the map. Selected IDs that are not
// nodes are ignored.
func ComputeDistances(r *model.AnalysisResult, selected []string) map[string]int {
	known := nodeSet(r)
	distances := make(map[string]int)

	// Initialize BFS queue with selected nodes at distance 0
	var queue []distanceQueueNode
	for _, id := range selected {
		if _, seen := distances[id]; known[id] && !seen {
			distances[id] = 0
			queue = append(queue, distanceQueueNode{nodeID: id})
		}
	}

	adjacency := buildAdjacencyList(r.Dependencies)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adjacency[current.nodeID] {
			if _, exists := distances[neighbor]; !exists {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{nodeID: neighbor, distance: current.distance + 1})
			}
		}
	}
	return distances
}

// buildAdjacencyList creates an undirected adjacency list from graph edges.
// Neighbours are sorted so that traversal order is stable.
func buildAdjacencyList(edges []model.Edge) map[string][]string {
	sets := make(map[string]map[string]bool)
	link := func(a, b string) {
		if sets[a] == nil {
			sets[a] = make(map[string]bool)
		}
		sets[a][b] = true
	}
	for _, e := range edges {
		link(e.Source, e.Target)
		link(e.Target, e.Source)
	}

	adjacency := make(map[string][]string, len(sets))
	for id, set := range sets {
		for n := range set {
			adjacency[id] = append(adjacency[id], n)
		}
		sort.Strings(adjacency[id])
	}
	return adjacency
}

// Neighbourhood is the part of a result within some distance of a focus.
type Neighbourhood struct {
	Focus        []string       `json:"focus"`
	MaxDistance  int            `json:"maxDistance"`
	Distances    map[string]int `json:"distances"`
	Nodes        []model.Node   `json:"nodes"`
	Dependencies []model.Edge   `json:"dependencies"`
	Cycles       []model.Cycle  `json:"cycles"`
}

// Focus returns the nodes within maxDistance of the selected ones, the
// dependencies between them and the cycles entirely inside that set.
func Focus(r *model.AnalysisResult, selected []string, maxDistance int) *Neighbourhood {
	all := ComputeDistances(r, selected)
	n := &Neighbourhood{
		Focus:        selected,
		MaxDistance:  maxDistance,
		Distances:    make(map[string]int),
		Nodes:        []model.Node{},
		Dependencies: []model.Edge{},
		Cycles:       []model.Cycle{},
	}
	for id, d := range all {
		if d <= maxDistance {
			n.Distances[id] = d
		}
	}

	for _, node := range r.Nodes {
		if _, ok := n.Distances[node.ID]; ok {
			n.Nodes = append(n.Nodes, node)
		}
	}
	for _, e := range r.Dependencies {
		_, src := n.Distances[e.Source]
		_, dst := n.Distances[e.Target]
		if src && dst {
			n.Dependencies = append(n.Dependencies, e)
		}
	}
cycles:
	for _, c := range r.Cycles {
		for _, id := range c.Nodes {
			if _, ok := n.Distances[id]; !ok {
				continue cycles
			}
		}
		n.Cycles = append(n.Cycles, c)
	}
	return n
}
