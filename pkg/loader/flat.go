package loader

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// Record is one line of a flat (JSONL) tree file.
type Record struct {
	ID                      string `json:"id"`
	Label                   string `json:"label"`
	Parent                  string `json:"parent,omitempty"`
	DefaultChecked          bool   `json:"defaultChecked,omitempty"`
	DefaultSecondaryChecked bool   `json:"defaultSecondaryChecked,omitempty"`
	DefaultExpanded         bool   `json:"defaultExpanded,omitempty"`
}

func parseFlat(r io.Reader, opts ParseOptions) ([]*model.Node, error) {
	records, err := readRecords(r, opts)
	if err != nil {
		return nil, err
	}
	return Assemble(records, opts.WarningHandler)
}

func readRecords(r io.Reader, opts ParseOptions) ([]Record, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)
	warn := opts.warn()

	var records []Record
	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading tree stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}
		if rec.ID == "" {
			warn(fmt.Sprintf("skipping record without id on line %d", lineNum))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Assemble links flat records into a forest. Children keep record order.
// A record whose parent is absent becomes a root and is reported through
// warn (nil prints to stderr). Duplicate ids and parent cycles fail with
// *model.MalformedTreeError.
func Assemble(records []Record, warn func(string)) ([]*model.Node, error) {
	warnFn := ParseOptions{WarningHandler: warn}.warn()

	nodes := make(map[string]*model.Node, len(records))
	pos := make(map[string]int64, len(records))
	for i, rec := range records {
		if _, dup := nodes[rec.ID]; dup {
			return nil, &model.MalformedTreeError{Reason: model.ErrDuplicateID, ID: rec.ID}
		}
		nodes[rec.ID] = &model.Node{
			ID:                      rec.ID,
			Label:                   rec.Label,
			DefaultChecked:          rec.DefaultChecked,
			DefaultSecondaryChecked: rec.DefaultSecondaryChecked,
			DefaultExpanded:         rec.DefaultExpanded,
		}
		pos[rec.ID] = int64(i)
	}

	if err := checkParentCycles(records, pos); err != nil {
		return nil, err
	}

	var roots []*model.Node
	for _, rec := range records {
		n := nodes[rec.ID]
		if rec.Parent == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[rec.Parent]
		if !ok {
			warnFn(fmt.Sprintf("record %q references missing parent %q; treating it as a root", rec.ID, rec.Parent))
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots, nil
}

// checkParentCycles finds parent chains that loop back on themselves. Such
// records would never be reachable from a root.
func checkParentCycles(records []Record, pos map[string]int64) error {
	g := simple.NewDirectedGraph()
	for i := range records {
		g.AddNode(simple.Node(int64(i)))
	}
	for i, rec := range records {
		if rec.Parent == "" {
			continue
		}
		if rec.Parent == rec.ID {
			return &model.MalformedTreeError{Reason: model.ErrCycle, ID: rec.ID, Path: []string{rec.ID, rec.ID}}
		}
		p, ok := pos[rec.Parent]
		if !ok {
			continue
		}
		g.SetEdge(g.NewEdge(g.Node(p), g.Node(int64(i))))
	}

	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		ids := make([]string, 0, len(scc))
		for _, n := range scc {
			ids = append(ids, records[n.ID()].ID)
		}
		sort.Strings(ids)
		return &model.MalformedTreeError{Reason: model.ErrCycle, ID: ids[0], Path: ids}
	}
	return nil
}
