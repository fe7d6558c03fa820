package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// paragraphChunker splits text on blank lines.
type paragraphChunker struct{}

func (paragraphChunker) Process(_ context.Context, text string) ([]domain.TextSpan, error) {
	var spans []domain.TextSpan
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			spans = append(spans, domain.TextSpan{Index: len(spans), Text: p})
		}
	}
	return spans, nil
}

// stubRegistry normalises text/plain by returning the bytes.
type stubRegistry struct{}

func (stubRegistry) Normalise(_ context.Context, raw *domain.RawFile) (*driven.NormaliseResult, error) {
	if raw.MIMEType != "text/plain" {
		return nil, domain.ErrUnsupportedType
	}
	return &driven.NormaliseResult{Title: raw.Name, Text: string(raw.Content)}, nil
}

func (stubRegistry) Register(driven.Normaliser)    {}
func (stubRegistry) SupportedMIMETypes() []string { return []string{"text/plain"} }

func newPipeline(f *fixture, embedder driven.EmbeddingService) *Pipeline {
	p := NewPipeline(f.content, f.coordinator, embedder, stubRegistry{}, paragraphChunker{}, 2)
	p.SetFileReader(func(path string) ([]byte, error) {
		if strings.HasSuffix(path, "missing.txt") {
			return nil, errors.New("no such file")
		}
		return []byte("first paragraph\n\nsecond paragraph"), nil
	})
	return p
}

func TestPipeline_Process_Text(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "one\n\ntwo\n\nthree")

	outcome, err := newPipeline(f, &mockEmbeddingService{fallback: []float32{1, 0}}).Process(ctx, item.Ref())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, outcome.Status)
	assert.Equal(t, 3, outcome.Chunks)

	chunks, _ := f.embeddings.ListByContent(ctx, item.Ref())
	require.Len(t, chunks, 3)
	assert.Equal(t, "three", chunks[2].Text)
}

func TestPipeline_Process_File(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addFile(ctx, "notes.txt", 40)

	outcome, err := newPipeline(f, &mockEmbeddingService{fallback: []float32{1, 0}}).Process(ctx, item.Ref())
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Chunks)
}

func TestPipeline_Process_UnreadableFileFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addFile(ctx, "missing.txt", 40)

	outcome, err := newPipeline(f, &mockEmbeddingService{fallback: []float32{1, 0}}).Process(ctx, item.Ref())
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, outcome.Status)

	got, _ := f.content.Get(ctx, item.Ref())
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestPipeline_Process_ProviderErrorFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")

	embedder := &mockEmbeddingService{embedErr: errors.New("timeout")}
	_, err := newPipeline(f, embedder).Process(ctx, item.Ref())
	assert.ErrorIs(t, err, domain.ErrProvider)

	got, _ := f.content.Get(ctx, item.Ref())
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestPipeline_Process_NoEmbedderLeavesPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")

	_, err := newPipeline(f, nil).Process(ctx, item.Ref())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	got, _ := f.content.Get(ctx, item.Ref())
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestPipeline_ProcessPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addText(ctx, "A", "alpha")
	f.addText(ctx, "B", "beta\n\ngamma")
	f.addFile(ctx, "missing.txt", 10)
	done := f.addText(ctx, "Done", "done")
	f.complete(ctx, done.Ref(), []float32{1, 0})

	report, err := newPipeline(f, &mockEmbeddingService{fallback: []float32{1, 0}}).ProcessPending(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, report.Chunks)
	assert.Len(t, report.Errors, 1)

	queue, err := f.content.ListByStatus(ctx, domain.QueuedStatuses()...)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
