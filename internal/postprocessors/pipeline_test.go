package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined spans.
type mockProcessor struct {
	name  string
	spans []domain.TextSpan
	err   error
	saw   []domain.TextSpan
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ string, spans []domain.TextSpan) ([]domain.TextSpan, error) {
	m.saw = spans
	if m.err != nil {
		return nil, m.err
	}
	if m.spans != nil {
		return m.spans, nil
	}
	return spans, nil
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	p.Add(&mockProcessor{name: "test"})

	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
	if names := p.Names(); len(names) != 1 || names[0] != "test" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	spans, err := NewPipeline().Process(context.Background(), "whole text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "whole text" {
		t.Errorf("expected single span, got %+v", spans)
	}
}

func TestPipeline_Process_Chained(t *testing.T) {
	first := &mockProcessor{name: "first", spans: []domain.TextSpan{{Index: 0, Text: "a"}}}
	second := &mockProcessor{name: "second"}

	spans, err := NewPipeline(first, second).Process(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.saw != nil {
		t.Error("first processor should receive nil spans")
	}
	if len(second.saw) != 1 {
		t.Error("second processor should receive the first processor's spans")
	}
	if len(spans) != 1 {
		t.Errorf("expected 1 span, got %d", len(spans))
	}
}

func TestPipeline_Process_Error(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(&mockProcessor{name: "broken", err: boom})

	_, err := p.Process(context.Background(), "text")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestFromSettings(t *testing.T) {
	p, err := FromSettings(domain.PipelineSettings{
		Processors:   []string{"chunker", "whitespace"},
		ChunkSize:    10,
		ChunkOverlap: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans, err := p.Process(context.Background(), "aaaa\tbbbb cccc dddd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"aaaa bbbb", "cccc dddd"}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %+v", len(want), spans)
	}
	for i := range want {
		if spans[i].Text != want[i] || spans[i].Index != i {
			t.Errorf("span %d: got %+v", i, spans[i])
		}
	}
}

func TestFromSettings_UnknownProcessor(t *testing.T) {
	_, err := FromSettings(domain.PipelineSettings{Processors: []string{"summariser"}})
	if err == nil {
		t.Error("expected error for unknown processor")
	}
}
