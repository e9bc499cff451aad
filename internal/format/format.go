package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// Names of the structured output formats.
const (
	JSON = "json"
	YAML = "yaml"
	Text = "text"
)

// Parse returns the formatter for name. Text output has no structured
// formatter and yields nil.
func Parse(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case JSON:
		return JSONFormatter{}, nil
	case YAML, "yml":
		return YAMLFormatter{}, nil
	case Text, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected json, yaml, text)", name)
	}
}

// JSONFormatter writes JSON output.
type JSONFormatter struct{}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}

// YAMLFormatter writes YAML output keyed by the payload's json tags.
type YAMLFormatter struct{}

// Write encodes payload as JSON first so field names and omitempty rules
// match the JSON output, then re-encodes the tree as block-style YAML.
func (f YAMLFormatter) Write(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	resetStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		resetStyle(child)
	}
}
