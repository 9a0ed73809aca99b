package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Document is the structured form of a whole report.
type Document struct {
	Left     string    `json:"left" yaml:"left"`
	Right    string    `json:"right" yaml:"right"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// ExportSink collects sections and writes them as JSON, YAML or CSV when
// closed.
type ExportSink struct {
	path   string
	format string
	doc    Document
}

// NewExportSink creates an export sink. format is one of json, yaml, csv.
func NewExportSink(path, format string, sides resource.Sides) (*ExportSink, error) {
	switch format {
	case "json", "yaml", "csv":
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	return &ExportSink{
		path:   path,
		format: format,
		doc:    Document{Left: sides.Left, Right: sides.Right, Sections: []Section{}},
	}, nil
}

// Emit records the section.
func (e *ExportSink) Emit(_ context.Context, s Section) error {
	if s.Findings == nil {
		s.Findings = []Finding{}
	}
	e.doc.Sections = append(e.doc.Sections, s)
	return nil
}

// Close writes the collected document to the export path.
func (e *ExportSink) Close() error {
	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	if err := WriteDocument(f, e.format, e.doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteDocument encodes doc to w in the given format.
func WriteDocument(w io.Writer, format string, doc Document) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json export: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml export: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml export: %w", err)
		}
	case "csv":
		if err := writeCSV(w, doc); err != nil {
			return fmt.Errorf("encode csv export: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	return nil
}

func writeCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"resource_type", "kind", "name", "message", "details"}); err != nil {
		return err
	}
	for _, s := range doc.Sections {
		for _, f := range s.Findings {
			record := []string{string(f.ResourceType), string(f.Kind), f.Name, f.Message, strings.Join(f.Details, "\n")}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
