package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

type searchRequest struct {
	Query     string               `json:"query"`
	Limit     int                  `json:"limit"`
	Threshold *float64             `json:"similarity_threshold"`
	Kinds     []domain.ContentKind `json:"kinds"`
}

type resultJSON struct {
	ChunkID     int64              `json:"chunk_id"`
	ContentID   int64              `json:"content_id"`
	ContentType domain.ContentKind `json:"content_type"`
	ChunkIndex  int                `json:"chunk_index"`
	ChunkText   string             `json:"chunk_text"`
	Similarity  float64            `json:"similarity"`
	Name        string             `json:"name,omitempty"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	results, err := s.ports.Search.Search(r.Context(), req.Query, domain.SearchOptions{
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Kinds:     req.Kinds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]resultJSON, len(results))
	for i := range results {
		res := &results[i]
		out[i] = resultJSON{
			ChunkID:     res.ChunkID,
			ContentID:   res.Content.ID,
			ContentType: res.Content.Kind,
			ChunkIndex:  res.ChunkIndex,
			ChunkText:   res.ChunkText,
			Similarity:  res.Similarity,
			Name:        res.DisplayName,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.ports.Dashboard.ProcessingQueue(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ports.Dashboard.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// usage returns stored rollups; ?days=N selects the trailing window.
func (s *Server) usage(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, &domain.ValidationError{Field: "days", Reason: "must be a positive integer"})
			return
		}
		days = n
	}
	history, err := s.ports.Dashboard.History(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []domain.UsageStat{}
	}
	writeJSON(w, http.StatusOK, history)
}

// snapshot stores the rollup for ?date=YYYY-MM-DD, today by default.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	day := s.now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			writeError(w, r, &domain.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}
	stat, err := s.ports.Dashboard.Snapshot(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stat)
}
