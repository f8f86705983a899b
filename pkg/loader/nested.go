package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// Nested documents come in three shapes: a single root object, an array of
// roots, or an object with a "nodes" array.
type document struct {
	Nodes []*model.Node `json:"nodes" yaml:"nodes"`
}

var errEmptyDocument = errors.New("empty tree document")

func parseJSON(r io.Reader) ([]*model.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading JSON tree: %w", err)
	}
	data = bytes.TrimSpace(stripBOM(data))
	if len(data) == 0 {
		return nil, errEmptyDocument
	}

	if data[0] == '[' {
		var roots []*model.Node
		if err := json.Unmarshal(data, &roots); err != nil {
			return nil, fmt.Errorf("decoding JSON tree: %w", err)
		}
		return roots, nil
	}

	var shape struct {
		document
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("decoding JSON tree: %w", err)
	}
	if shape.ID == "" && shape.Nodes != nil {
		return shape.Nodes, nil
	}
	var root model.Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding JSON tree: %w", err)
	}
	return []*model.Node{&root}, nil
}

func parseYAML(r io.Reader) ([]*model.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyDocument
		}
		return nil, fmt.Errorf("decoding YAML tree: %w", err)
	}
	body := &doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		body = doc.Content[0]
	}

	switch body.Kind {
	case yaml.SequenceNode:
		var roots []*model.Node
		if err := body.Decode(&roots); err != nil {
			return nil, fmt.Errorf("decoding YAML tree: %w", err)
		}
		return roots, nil
	case yaml.MappingNode:
		if hasKey(body, "nodes") && !hasKey(body, "id") {
			var d document
			if err := body.Decode(&d); err != nil {
				return nil, fmt.Errorf("decoding YAML tree: %w", err)
			}
			return d.Nodes, nil
		}
		var root model.Node
		if err := body.Decode(&root); err != nil {
			return nil, fmt.Errorf("decoding YAML tree: %w", err)
		}
		return []*model.Node{&root}, nil
	default:
		return nil, fmt.Errorf("decoding YAML tree: expected a mapping or a sequence at line %d", body.Line)
	}
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}
