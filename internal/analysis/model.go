// Package analysis runs the AHP engine over a persisted project: it turns a
// store snapshot into a hierarchy and per-context comparison sets, evaluates
// every evaluator in parallel and aggregates the group result.
package analysis

import (
	"fmt"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

// Context is one comparison context: the node whose children (or, for a leaf
// criterion, the project's alternatives) are compared pairwise.
type Context struct {
	Node     string
	Parent   *string
	Elements []string
	Leaf     bool
}

// Model is the engine view of a project snapshot.
type Model struct {
	Root         string
	Hierarchy    ahp.Hierarchy
	Alternatives []string
	Contexts     []Context

	byParent map[string]int
}

// BuildModel derives the criteria tree and comparison contexts from snap.
// The project id is the goal node; top-level criteria hang off it and
// comparisons among them carry an empty parent.
func BuildModel(snap *store.Snapshot) (*Model, error) {
	root := snap.Project.ID.String()

	nodes := make([]ahp.CriteriaNode, 0, len(snap.Criteria)+1)
	nodes = append(nodes, ahp.CriteriaNode{ID: root})
	for _, c := range snap.Criteria {
		if c.ID == root {
			return nil, fmt.Errorf("%w: criterion reuses the project id", ahp.ErrInvalidHierarchy)
		}
		parent := c.ParentID
		if parent == "" {
			parent = root
		}
		nodes = append(nodes, ahp.CriteriaNode{ID: c.ID, ParentID: parent})
	}
	h, err := ahp.FromParents(nodes)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Root:      root,
		Hierarchy: h,
		byParent:  make(map[string]int),
	}
	for _, a := range snap.Alternatives {
		m.Alternatives = append(m.Alternatives, a.ID)
	}

	// Contexts follow criteria insertion order so results are stable.
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		order = append(order, n.ID)
	}
	for _, id := range order {
		node := h.Nodes[id]
		ctx := Context{Node: id}
		key := id
		if id == root {
			key = ""
		} else {
			p := id
			ctx.Parent = &p
		}
		if node.IsLeaf() {
			ctx.Leaf = true
			ctx.Elements = append([]string(nil), m.Alternatives...)
		} else {
			ctx.Elements = append([]string(nil), node.Children...)
		}
		m.byParent[key] = len(m.Contexts)
		m.Contexts = append(m.Contexts, ctx)
	}
	return m, nil
}

// ContextFor returns the context compared under parent ("" for the goal).
func (m *Model) ContextFor(parent string) (Context, bool) {
	i, ok := m.byParent[parent]
	if !ok {
		return Context{}, false
	}
	return m.Contexts[i], true
}

// CheckComparison verifies that c names two distinct elements of its context
// and carries a value on the Saaty scale.
func (m *Model) CheckComparison(c ahp.Comparison) error {
	parent := ""
	if c.ParentContextID != nil {
		parent = *c.ParentContextID
	}
	ctx, ok := m.ContextFor(parent)
	if !ok {
		return fmt.Errorf("%w: parent context %q", ahp.ErrUnknownElement, parent)
	}
	if c.ElementA == c.ElementB {
		return fmt.Errorf("%w: %q", ahp.ErrSelfComparison, c.ElementA)
	}
	for _, id := range []string{c.ElementA, c.ElementB} {
		if !contains(ctx.Elements, id) {
			return fmt.Errorf("%w: %q is not compared under %q", ahp.ErrUnknownElement, id, parent)
		}
	}
	if !ahp.ValidValue(c.Value) {
		return fmt.Errorf("%w: %v", ahp.ErrInvalidComparisonValue, c.Value)
	}
	return nil
}

// matrixFor builds the matrix of ctx from comps. Contexts with a single
// element get the trivial 1x1 matrix. Judgments that name an element no
// longer compared under ctx, left behind when a leaf criterion gained
// children, are skipped and counted as stale.
func (ctx Context) matrixFor(comps []ahp.Comparison) (*ahp.Matrix, int, error) {
	scoped := ahp.FilterByParent(comps, ctx.Parent)
	current := make([]ahp.Comparison, 0, len(scoped))
	for _, c := range scoped {
		if contains(ctx.Elements, c.ElementA) && contains(ctx.Elements, c.ElementB) {
			current = append(current, c)
		}
	}
	stale := len(scoped) - len(current)

	switch len(ctx.Elements) {
	case 0:
		return nil, stale, fmt.Errorf("%w: %q has no alternatives to compare", ahp.ErrIncompleteLeafCoverage, ctx.Node)
	case 1:
		m, err := ahp.NewMatrix(ctx.Elements, [][]float64{{1}})
		return m, stale, err
	}
	m, err := ahp.BuildMatrix(ctx.Elements, current)
	return m, stale, err
}

// EngineComparisons converts stored judgments to engine comparisons.
func EngineComparisons(rows []store.Comparison) []ahp.Comparison {
	out := make([]ahp.Comparison, 0, len(rows))
	for _, r := range rows {
		c := ahp.Comparison{ElementA: r.ElementA, ElementB: r.ElementB, Value: r.Value}
		if r.ParentID != "" {
			p := r.ParentID
			c.ParentContextID = &p
		}
		out = append(out, c)
	}
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
