// Package testutil provides deterministic tree fixtures for tests.
// All generators produce the same output for the same seed.
package testutil

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// GeneratorConfig controls tree generation.
type GeneratorConfig struct {
	Seed          int64   // Random seed (0 = 42)
	IDPrefix      string  // Prefix for node IDs (default: "n")
	CheckedRatio  float64 // Share of leaves with DefaultChecked set
	ExpandedRatio float64 // Share of interior nodes with DefaultExpanded set
}

// DefaultConfig returns a config suitable for most tests: nothing seeded.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{Seed: 42, IDPrefix: "n"}
}

// Generator creates node trees of various shapes.
type Generator struct {
	cfg  GeneratorConfig
	rng  *rand.Rand
	next int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "n"
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) node() *model.Node {
	id := fmt.Sprintf("%s%d", g.cfg.IDPrefix, g.next)
	g.next++
	return &model.Node{ID: id, Label: "Node " + strings.ToUpper(id)}
}

// Chain creates a single path of depth nodes: n0 > n1 > ... > n{depth-1}.
func (g *Generator) Chain(depth int) []*model.Node {
	if depth < 1 {
		return nil
	}
	root := g.node()
	cur := root
	for i := 1; i < depth; i++ {
		child := g.node()
		cur.Children = []*model.Node{child}
		cur = child
	}
	g.seed([]*model.Node{root})
	return []*model.Node{root}
}

// Wide creates one root with width leaf children.
func (g *Generator) Wide(width int) []*model.Node {
	root := g.node()
	for i := 0; i < width; i++ {
		root.Children = append(root.Children, g.node())
	}
	g.seed([]*model.Node{root})
	return []*model.Node{root}
}

// Balanced creates a complete tree where every interior node has breadth
// children and leaves sit at the given depth (a depth of 1 is a single node).
func (g *Generator) Balanced(depth, breadth int) []*model.Node {
	if depth < 1 {
		return nil
	}
	root := g.node()
	level := []*model.Node{root}
	for d := 1; d < depth; d++ {
		var nextLevel []*model.Node
		for _, parent := range level {
			for i := 0; i < breadth; i++ {
				child := g.node()
				parent.Children = append(parent.Children, child)
				nextLevel = append(nextLevel, child)
			}
		}
		level = nextLevel
	}
	g.seed([]*model.Node{root})
	return []*model.Node{root}
}

// Random creates a forest of size nodes where each node after the first
// picks a random earlier node as its parent, or becomes a new root with
// probability 1/8.
func (g *Generator) Random(size int) []*model.Node {
	if size < 1 {
		return nil
	}
	all := make([]*model.Node, 0, size)
	var roots []*model.Node
	for i := 0; i < size; i++ {
		n := g.node()
		if i == 0 || g.rng.Intn(8) == 0 {
			roots = append(roots, n)
		} else {
			parent := all[g.rng.Intn(len(all))]
			parent.Children = append(parent.Children, n)
		}
		all = append(all, n)
	}
	g.seed(roots)
	return roots
}

// Forest creates count balanced trees side by side.
func (g *Generator) Forest(count, depth, breadth int) []*model.Node {
	var roots []*model.Node
	for i := 0; i < count; i++ {
		roots = append(roots, g.Balanced(depth, breadth)...)
	}
	return roots
}

// seed applies the configured default ratios.
func (g *Generator) seed(roots []*model.Node) {
	if g.cfg.CheckedRatio <= 0 && g.cfg.ExpandedRatio <= 0 {
		return
	}
	model.Walk(roots, func(n, _ *model.Node, _ int) bool {
		if n.IsLeaf() {
			n.DefaultChecked = g.rng.Float64() < g.cfg.CheckedRatio
		} else {
			n.DefaultExpanded = g.rng.Float64() < g.cfg.ExpandedRatio
		}
		return true
	})
}

// flatRecord mirrors the JSONL line format read by the loader.
type flatRecord struct {
	ID                      string `json:"id"`
	Label                   string `json:"label"`
	Parent                  string `json:"parent,omitempty"`
	DefaultChecked          bool   `json:"defaultChecked,omitempty"`
	DefaultSecondaryChecked bool   `json:"defaultSecondaryChecked,omitempty"`
	DefaultExpanded         bool   `json:"defaultExpanded,omitempty"`
}

// ToJSONL flattens roots into one record per line, parents first.
func ToJSONL(roots []*model.Node) string {
	var sb strings.Builder
	model.Walk(roots, func(n, parent *model.Node, _ int) bool {
		rec := flatRecord{
			ID:                      n.ID,
			Label:                   n.Label,
			DefaultChecked:          n.DefaultChecked,
			DefaultSecondaryChecked: n.DefaultSecondaryChecked,
			DefaultExpanded:         n.DefaultExpanded,
		}
		if parent != nil {
			rec.Parent = parent.ID
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return true
		}
		sb.Write(data)
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}

// ToJSON renders roots as a nested JSON array. It indents compact output
// because MarshalIndent can lay out the first encoding of the recursive
// children type differently from later ones.
func ToJSON(roots []*model.Node) string {
	data, err := json.Marshal(roots)
	if err != nil {
		return "[]"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// ============================================================================
// Convenience Functions
// ============================================================================

// Scenario returns the small reference tree A:[B, C:[D]].
func Scenario() []*model.Node {
	return []*model.Node{
		model.Branch("A", "A",
			model.Leaf("B", "B"),
			model.Branch("C", "C", model.Leaf("D", "D")),
		),
	}
}

// QuickChain creates a chain with default settings.
func QuickChain(depth int) []*model.Node {
	return NewDefault().Chain(depth)
}

// QuickBalanced creates a balanced tree with default settings.
func QuickBalanced(depth, breadth int) []*model.Node {
	return NewDefault().Balanced(depth, breadth)
}

// QuickRandom creates a random forest with default settings.
func QuickRandom(size int) []*model.Node {
	return NewDefault().Random(size)
}
