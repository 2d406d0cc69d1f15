package risk

import (
	"sort"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// GraphNode is one entity in the connection graph with its own local risk
// signals attached.
type GraphNode struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	MaxSeverity  values.Severity `json:"max_severity"`
	HasLocalRisk bool            `json:"has_local_risk"`
	PEP          bool            `json:"pep"`
	Sanctioned   bool            `json:"sanctioned"`
	ShellMarker  bool            `json:"shell_marker"`
}

// NodeRisk is the analyzer's per-node output.
type NodeRisk struct {
	NodeID         uuid.UUID `json:"node_id"`
	PropagatedRisk float64   `json:"propagated_risk"`
	Degree         int       `json:"degree"`
	Betweenness    float64   `json:"betweenness"`
	HopsFromRoot   int       `json:"hops_from_root"`
}

// ConnectionAnalysis is the output for one subject's network.
type ConnectionAnalysis struct {
	SubjectRisk   float64                `json:"subject_risk"`
	Nodes         map[uuid.UUID]NodeRisk `json:"nodes"`
	D2Count       int                    `json:"d2_count"`
	D3Count       int                    `json:"d3_count"`
	PEPHits       int                    `json:"pep_hits"`
	SanctionsHits int                    `json:"sanctions_hits"`
	ShellMarkers  int                    `json:"shell_markers"`
}

const maxPropagationDepth = 3

// severityRetention is the per-hop fraction of risk a relation carries.
var severityRetention = map[values.Severity]float64{
	values.SeverityCritical: 0.70,
	values.SeverityHigh:     0.60,
	values.SeverityMedium:   0.50,
	values.SeverityLow:      0.30,
}

var relationFactor = map[entity.RelationType]float64{
	entity.RelationOwnership:   1.00,
	entity.RelationFinancial:   0.95,
	entity.RelationBusiness:    0.90,
	entity.RelationPolitical:   0.90,
	entity.RelationFamily:      0.80,
	entity.RelationLegal:       0.80,
	entity.RelationEmployment:  0.60,
	entity.RelationSocial:      0.30,
	entity.RelationEducational: 0.20,
}

var strengthFactor = map[entity.ConnectionStrength]float64{
	entity.StrengthDirect: 1.0,
	entity.StrengthWeak:   0.4,
}

// ConnectionAnalyzer propagates risk through the entity graph. The graph is
// cyclic; all walks carry a visited set and stop at three hops.
type ConnectionAnalyzer struct {
	nodes     map[uuid.UUID]*GraphNode
	adjacency map[uuid.UUID][]entity.Relation
}

func NewConnectionAnalyzer() *ConnectionAnalyzer {
	return &ConnectionAnalyzer{
		nodes:     make(map[uuid.UUID]*GraphNode),
		adjacency: make(map[uuid.UUID][]entity.Relation),
	}
}

func (ca *ConnectionAnalyzer) AddNode(n GraphNode) {
	ca.nodes[n.ID] = &n
}

// AddRelation indexes the edge in both directions; propagation and neighbor
// queries treat the graph as undirected.
func (ca *ConnectionAnalyzer) AddRelation(r entity.Relation) {
	ca.adjacency[r.FromID] = append(ca.adjacency[r.FromID], r)
	reversed := r
	reversed.FromID, reversed.ToID = r.ToID, r.FromID
	ca.adjacency[reversed.FromID] = append(ca.adjacency[reversed.FromID], reversed)
}

// Analyze walks outward from the subject, propagating each risky node's
// contribution back along its path and combining contributions with
// 1 - prod(1 - r) so totals never exceed 1.
func (ca *ConnectionAnalyzer) Analyze(subjectID uuid.UUID) ConnectionAnalysis {
	out := ConnectionAnalysis{Nodes: make(map[uuid.UUID]NodeRisk)}

	hops := ca.bfs(subjectID)

	var contributions []float64
	for id, node := range ca.nodes {
		depth, reachable := hops[id]
		if !reachable || depth == 0 || depth > maxPropagationDepth {
			continue
		}

		nr := NodeRisk{
			NodeID:       id,
			Degree:       len(ca.adjacency[id]),
			Betweenness:  ca.betweenness(id, hops),
			HopsFromRoot: depth,
		}
		if node.HasLocalRisk {
			r := ca.propagate(subjectID, id, depth)
			nr.PropagatedRisk = r
			if r > 0 {
				contributions = append(contributions, r)
			}
		}
		out.Nodes[id] = nr

		// Depth 1 is the direct (D2) circle; anything beyond is the
		// extended (D3) network.
		if depth == 1 {
			out.D2Count++
		} else {
			out.D3Count++
		}
		if node.PEP {
			out.PEPHits++
		}
		if node.Sanctioned {
			out.SanctionsHits++
		}
		if node.ShellMarker {
			out.ShellMarkers++
		}
	}

	prod := 1.0
	for _, r := range contributions {
		prod *= 1 - r
	}
	out.SubjectRisk = 1 - prod
	return out
}

// bfs returns hop counts from root, depth-limited and cycle-safe.
func (ca *ConnectionAnalyzer) bfs(root uuid.UUID) map[uuid.UUID]int {
	hops := map[uuid.UUID]int{root: 0}
	frontier := []uuid.UUID{root}
	for depth := 1; depth <= maxPropagationDepth && len(frontier) > 0; depth++ {
		var next []uuid.UUID
		for _, id := range frontier {
			for _, rel := range ca.adjacency[id] {
				if _, seen := hops[rel.ToID]; seen {
					continue
				}
				hops[rel.ToID] = depth
				next = append(next, rel.ToID)
			}
		}
		frontier = next
	}
	return hops
}

// propagate finds the strongest-retention path from the risky node back to
// the subject and multiplies per-hop retention along it.
func (ca *ConnectionAnalyzer) propagate(root, target uuid.UUID, depth int) float64 {
	node := ca.nodes[target]
	base := severityRetention[node.MaxSeverity]

	best := 0.0
	visited := map[uuid.UUID]bool{target: true}
	ca.walkBack(target, root, 1.0, depth, visited, &best)
	return base * best
}

// walkBack explores paths of at most the discovered depth, accumulating the
// product of relation and strength factors.
func (ca *ConnectionAnalyzer) walkBack(from, root uuid.UUID, acc float64, remaining int, visited map[uuid.UUID]bool, best *float64) {
	if remaining < 0 {
		return
	}
	for _, rel := range ca.adjacency[from] {
		factor := acc * relationFactor[rel.Type] * strengthFactor[rel.Strength]
		if rel.ToID == root {
			if factor > *best {
				*best = factor
			}
			continue
		}
		if visited[rel.ToID] {
			continue
		}
		visited[rel.ToID] = true
		ca.walkBack(rel.ToID, root, factor, remaining-1, visited, best)
		delete(visited, rel.ToID)
	}
}

// betweenness approximates centrality as the fraction of this node's
// neighbor pairs whose only observed short link runs through it. Reporting
// only; nothing downstream branches on it.
func (ca *ConnectionAnalyzer) betweenness(id uuid.UUID, hops map[uuid.UUID]int) float64 {
	neighbors := ca.adjacency[id]
	if len(neighbors) < 2 {
		return 0
	}
	linked := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, rel := range ca.adjacency[id] {
		for _, rel2 := range ca.adjacency[rel.ToID] {
			if linked[rel.ToID] == nil {
				linked[rel.ToID] = make(map[uuid.UUID]bool)
			}
			linked[rel.ToID][rel2.ToID] = true
		}
	}

	ids := make([]uuid.UUID, 0, len(neighbors))
	seen := make(map[uuid.UUID]bool)
	for _, rel := range neighbors {
		if !seen[rel.ToID] {
			seen[rel.ToID] = true
			ids = append(ids, rel.ToID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	pairs, through := 0, 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			pairs++
			if !linked[ids[i]][ids[j]] {
				through++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(through) / float64(pairs)
}
