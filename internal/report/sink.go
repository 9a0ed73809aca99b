package report

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Sink receives comparison sections as they are produced.
type Sink interface {
	// Emit writes one section.
	Emit(ctx context.Context, s Section) error

	// Close flushes and releases the sink.
	Close() error
}

// MultiSink fans out to multiple sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that writes to every given sink in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit sends to all sinks, returns first error.
func (m *MultiSink) Emit(ctx context.Context, s Section) error {
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks. Every sink is closed even if one fails; the
// first error is returned.
func (m *MultiSink) Close() error {
	var first error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TextSink renders sections as plain text lines.
type TextSink struct {
	w      io.Writer
	closer io.Closer
}

// NewTextSink writes the text report to w, typically os.Stdout.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// NewFileSink truncates or creates the report file at path and writes the
// report header to it.
func NewFileSink(path string, sides resource.Sides) (*TextSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "Comparison between %s and %s\n", sides.Left, sides.Right); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return &TextSink{w: f, closer: f}, nil
}

// Emit writes every line of the section.
func (t *TextSink) Emit(_ context.Context, s Section) error {
	for _, line := range s.Lines() {
		if _, err := fmt.Fprintln(t.w, line); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if f, ok := t.w.(*os.File); ok && t.closer != nil {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync report: %w", err)
		}
	}
	return nil
}

// Close closes the underlying file, if any.
func (t *TextSink) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
