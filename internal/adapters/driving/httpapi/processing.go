package httpapi

import (
	"net/http"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

type completeRequest struct {
	Chunks []domain.ChunkInput `json:"chunks"`
}

type failRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status domain.ProcessingStatus `json:"status"`

	// Force applies the status without consulting the state machine.
	Force bool `json:"force"`
}

type embeddingRequest struct {
	ContentID   int64              `json:"content_id"`
	ContentType domain.ContentKind `json:"content_type"`
	Vector      []float32          `json:"embedding_vector"`
	ChunkIndex  *int               `json:"chunk_index"`
	ChunkText   string             `json:"chunk_text"`
}

type chunkJSON struct {
	ID          int64              `json:"id"`
	ContentID   int64              `json:"content_id"`
	ContentType domain.ContentKind `json:"content_type"`
	ChunkIndex  int                `json:"chunk_index"`
	ChunkText   string             `json:"chunk_text"`
	Vector      []float32          `json:"embedding_vector"`
	CreatedAt   time.Time          `json:"created_at"`
}

type reportJSON struct {
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Chunks    int      `json:"chunks"`
	Errors    []string `json:"errors,omitempty"`
}

func (s *Server) beginProcessing(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.ports.Coordinator.BeginProcessing(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemJSON(item))
}

func (s *Server) completeProcessing(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.ports.Coordinator.CompleteProcessing(r.Context(), ref, req.Chunks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemJSON(item))
}

func (s *Server) failProcessing(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req failRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	item, err := s.ports.Coordinator.FailProcessing(r.Context(), ref, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemJSON(item))
}

// updateStatus applies one state machine step, or any status when forced.
func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := domain.ParseProcessingStatus(string(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var item *domain.ContentItem
	if req.Force {
		item, err = s.ports.Content.ForceStatus(r.Context(), ref, status)
	} else {
		item, err = s.ports.Coordinator.Transition(r.Context(), ref, status)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemJSON(item))
}

// createEmbedding records one chunk for an item that is being processed.
func (s *Server) createEmbedding(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ref := domain.ContentRef{Kind: req.ContentType, ID: req.ContentID}
	if err := ref.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	chunk, err := s.ports.Coordinator.RecordChunk(r.Context(), ref, domain.ChunkInput{
		Index:  req.ChunkIndex,
		Text:   req.ChunkText,
		Vector: req.Vector,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chunkJSON{
		ID:          chunk.ID,
		ContentID:   chunk.Content.ID,
		ContentType: chunk.Content.Kind,
		ChunkIndex:  chunk.ChunkIndex,
		ChunkText:   chunk.Text,
		Vector:      chunk.Vector,
		CreatedAt:   chunk.CreatedAt,
	})
}

func (s *Server) processOne(w http.ResponseWriter, r *http.Request) {
	if s.ports.Pipeline == nil {
		writeError(w, r, domain.ErrEmbeddingUnavailable)
		return
	}
	ref, err := refFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := s.ports.Pipeline.Process(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":    outcome.Ref.String(),
		"status": outcome.Status,
		"chunks": outcome.Chunks,
	})
}

func (s *Server) processPending(w http.ResponseWriter, r *http.Request) {
	if s.ports.Pipeline == nil {
		writeError(w, r, domain.ErrEmbeddingUnavailable)
		return
	}
	report, err := s.ports.Pipeline.ProcessPending(r.Context())
	if err != nil && report == nil {
		writeError(w, r, err)
		return
	}
	out := reportJSON{
		Completed: report.Completed,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
		Chunks:    report.Chunks,
	}
	for _, e := range report.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, out)
}
