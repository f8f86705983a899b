//go:build ignore

// generate_testdata.go creates standard tree datasets for benchmarking ct.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	tests/testdata/benchmark/small.jsonl   (100 nodes, random forest)
//	tests/testdata/benchmark/medium.jsonl  (1000 nodes, random forest)
//	tests/testdata/benchmark/deep.json     (chain of 2000 nodes)
//	tests/testdata/benchmark/wide.json     (5461 nodes, balanced 7 levels x 4)
//	tests/testdata/benchmark/huge.jsonl    (20000 nodes, random forest)
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/testutil"
)

type datasetSpec struct {
	name  string
	ext   string
	build func(g *testutil.Generator) []*model.Node
}

var datasets = []datasetSpec{
	{"small", ".jsonl", func(g *testutil.Generator) []*model.Node { return g.Random(100) }},
	{"medium", ".jsonl", func(g *testutil.Generator) []*model.Node { return g.Random(1000) }},
	{"deep", ".json", func(g *testutil.Generator) []*model.Node { return g.Chain(2000) }},
	{"wide", ".json", func(g *testutil.Generator) []*model.Node { return g.Balanced(7, 4) }},
	{"huge", ".jsonl", func(g *testutil.Generator) []*model.Node { return g.Random(20000) }},
}

func main() {
	outputDir := "tests/testdata/benchmark"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for i, ds := range datasets {
		gen := testutil.New(testutil.GeneratorConfig{
			Seed:          int64(i + 1), // Reproducible per dataset
			IDPrefix:      strings.ToUpper(ds.name[:1]),
			CheckedRatio:  0.1,
			ExpandedRatio: 0.05,
		})
		roots := ds.build(gen)

		var content string
		if ds.ext == ".jsonl" {
			content = testutil.ToJSONL(roots)
		} else {
			content = testutil.ToJSON(roots)
		}

		outputPath := filepath.Join(outputDir, ds.name+ds.ext)
		if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d nodes, %d bytes)\n", outputPath, model.Count(roots), len(content))
	}

	fmt.Println("\nDone! Test datasets created in", outputDir)
}
