package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// itemJSON is the wire form of a content item. File and text fields are
// present only for their family.
type itemJSON struct {
	ID        int64                   `json:"id"`
	Kind      domain.ContentKind      `json:"data_type"`
	Status    domain.ProcessingStatus `json:"processing_status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`

	Filename     string `json:"filename,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	MIMEType     string `json:"mime_type,omitempty"`
	UploadPath   string `json:"upload_path,omitempty"`

	Title       string `json:"title,omitempty"`
	Content     string `json:"content,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

func toItemJSON(item *domain.ContentItem) itemJSON {
	out := itemJSON{
		ID:        item.ID,
		Kind:      item.Kind,
		Status:    item.Status,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if f := item.File; f != nil {
		out.Filename = f.Filename
		out.OriginalName = f.OriginalName
		out.FileSize = f.Size
		out.MIMEType = f.MIMEType
		out.UploadPath = f.StoragePath
	}
	if t := item.Text; t != nil {
		out.Title = t.Title
		out.Content = t.Body
		out.ContentHash = t.ContentHash
	}
	return out
}

func toItemsJSON(items []domain.ContentItem) []itemJSON {
	out := make([]itemJSON, len(items))
	for i := range items {
		out[i] = toItemJSON(&items[i])
	}
	return out
}

type createFileRequest struct {
	Filename     string             `json:"filename"`
	OriginalName string             `json:"original_name"`
	FileSize     int64              `json:"file_size"`
	MIMEType     string             `json:"mime_type"`
	UploadPath   string             `json:"upload_path"`
	StoragePath  string             `json:"storage_path"`
	DataType     domain.ContentKind `json:"data_type"`
}

type createTextRequest struct {
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	DataType    domain.ContentKind `json:"data_type"`
	ContentType domain.ContentKind `json:"content_type"`
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.DataType != "" && req.DataType != domain.KindFile {
		writeError(w, r, &domain.ValidationError{Field: "data_type", Reason: "file uploads must be of type file"})
		return
	}
	path := req.UploadPath
	if path == "" {
		path = req.StoragePath
	}

	item, err := s.ports.Content.CreateFile(r.Context(), domain.NewFile{
		Filename:     req.Filename,
		OriginalName: req.OriginalName,
		Size:         req.FileSize,
		MIMEType:     req.MIMEType,
		StoragePath:  path,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemJSON(item))
}

func (s *Server) createText(w http.ResponseWriter, r *http.Request) {
	var req createTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	kind := req.DataType
	if kind == "" {
		kind = req.ContentType
	}

	item, err := s.ports.Content.CreateText(r.Context(), domain.NewText{
		Title: req.Title,
		Body:  req.Content,
		Kind:  kind,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemJSON(item))
}

// listKind lists one family, newest first. The text list includes documents.
func (s *Server) listKind(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := s.ports.Content.List(r.Context(), kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toItemsJSON(items))
	}
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.ports.Content.Get(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemJSON(item))
}

func (s *Server) resetContent(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.ports.Content.ResetToPending(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemJSON(item))
}

// refFromPath reads {kind} and {id} from the route.
func refFromPath(r *http.Request) (domain.ContentRef, error) {
	kind, err := domain.ParseContentKind(chi.URLParam(r, "kind"))
	if err != nil {
		return domain.ContentRef{}, err
	}
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.ContentRef{}, &domain.ValidationError{Field: "id", Reason: "not a number: " + strconv.Quote(raw)}
	}
	ref := domain.ContentRef{Kind: kind, ID: id}
	return ref, ref.Validate()
}
