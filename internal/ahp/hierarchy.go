package ahp

import (
	"fmt"
	"sort"
)

// CriteriaNode is one criterion in the arena. ParentID is empty for the root.
type CriteriaNode struct {
	ID       string   `json:"id" yaml:"id" mapstructure:"id"`
	ParentID string   `json:"parentId,omitempty" yaml:"parent,omitempty" mapstructure:"parent"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`
}

// IsLeaf reports whether the node has no children.
func (n *CriteriaNode) IsLeaf() bool { return len(n.Children) == 0 }

// Hierarchy is a criteria tree stored as nodes addressed by id.
type Hierarchy struct {
	Root  string                   `json:"root"`
	Nodes map[string]*CriteriaNode `json:"nodes"`
}

// NewHierarchy builds an arena from a flat node list and validates it.
func NewHierarchy(root string, nodes []CriteriaNode) (Hierarchy, error) {
	h := Hierarchy{Root: root, Nodes: make(map[string]*CriteriaNode, len(nodes))}
	for i := range nodes {
		n := nodes[i]
		if _, dup := h.Nodes[n.ID]; dup {
			return Hierarchy{}, fmt.Errorf("%w: node %q declared twice", ErrInvalidHierarchy, n.ID)
		}
		n.Children = append([]string(nil), n.Children...)
		h.Nodes[n.ID] = &n
	}
	if err := h.Validate(); err != nil {
		return Hierarchy{}, err
	}
	return h, nil
}

// FromParents builds an arena where only parent links are known. Children
// keep the order in which they appear in nodes.
func FromParents(nodes []CriteriaNode) (Hierarchy, error) {
	h := Hierarchy{Nodes: make(map[string]*CriteriaNode, len(nodes))}
	for i := range nodes {
		id := nodes[i].ID
		if _, dup := h.Nodes[id]; dup {
			return Hierarchy{}, fmt.Errorf("%w: node %q declared twice", ErrInvalidHierarchy, id)
		}
		h.Nodes[id] = &CriteriaNode{ID: id, ParentID: nodes[i].ParentID}
	}
	for _, n := range nodes {
		if n.ParentID == "" {
			if h.Root != "" {
				return Hierarchy{}, fmt.Errorf("%w: two roots %q and %q", ErrInvalidHierarchy, h.Root, n.ID)
			}
			h.Root = n.ID
			continue
		}
		parent, ok := h.Nodes[n.ParentID]
		if !ok {
			return Hierarchy{}, fmt.Errorf("%w: %q has unknown parent %q", ErrInvalidHierarchy, n.ID, n.ParentID)
		}
		parent.Children = append(parent.Children, n.ID)
	}
	if err := h.Validate(); err != nil {
		return Hierarchy{}, err
	}
	return h, nil
}

// Validate checks that the arena forms a single tree rooted at Root.
func (h Hierarchy) Validate() error {
	root, ok := h.Nodes[h.Root]
	if !ok {
		return fmt.Errorf("%w: root %q not found", ErrInvalidHierarchy, h.Root)
	}
	if root.ParentID != "" {
		return fmt.Errorf("%w: root %q has parent %q", ErrInvalidHierarchy, h.Root, root.ParentID)
	}

	owner := make(map[string]string, len(h.Nodes))
	visited := make(map[string]bool, len(h.Nodes))
	stack := []string{h.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			return fmt.Errorf("%w: cycle through %q", ErrInvalidHierarchy, id)
		}
		visited[id] = true
		for _, c := range h.Nodes[id].Children {
			child, ok := h.Nodes[c]
			if !ok {
				return fmt.Errorf("%w: %q lists unknown child %q", ErrInvalidHierarchy, id, c)
			}
			if prev, taken := owner[c]; taken || c == h.Root {
				return fmt.Errorf("%w: %q appears under both %q and %q", ErrInvalidHierarchy, c, prev, id)
			}
			if child.ParentID != id {
				return fmt.Errorf("%w: %q is listed under %q but points to %q", ErrInvalidHierarchy, c, id, child.ParentID)
			}
			owner[c] = id
			stack = append(stack, c)
		}
	}
	if len(visited) != len(h.Nodes) {
		return fmt.Errorf("%w: %d node(s) unreachable from %q", ErrInvalidHierarchy, len(h.Nodes)-len(visited), h.Root)
	}
	return nil
}

// Leaves returns the leaf criteria ids in sorted order.
func (h Hierarchy) Leaves() []string {
	var out []string
	for id, n := range h.Nodes {
		if n.IsLeaf() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Internal returns the ids of nodes with at least one child, sorted.
func (h Hierarchy) Internal() []string {
	var out []string
	for id, n := range h.Nodes {
		if !n.IsLeaf() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
