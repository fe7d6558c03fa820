package whitespace

import (
	"context"
	"testing"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestProcessor_Process(t *testing.T) {
	spans := []domain.TextSpan{
		{Index: 0, Text: "  hello \t  world  "},
		{Index: 1, Text: " \n\t "},
		{Index: 2, Text: "line one\n\n\nline   two"},
	}

	got, err := New().Process(context.Background(), "", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.TextSpan{
		{Index: 0, Text: "hello world"},
		{Index: 1, Text: "line one\nline two"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d spans, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestProcessor_Process_NoSpans(t *testing.T) {
	got, err := New().Process(context.Background(), "  whole   text ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "whole text" {
		t.Errorf("unexpected spans: %+v", got)
	}
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "whitespace" {
		t.Error("unexpected name")
	}
}
