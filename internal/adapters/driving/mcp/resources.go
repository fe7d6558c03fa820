package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// uriScheme is the URI scheme for kbase resources.
const uriScheme = "kbase://"

// registerResources registers the content resources when a content port is wired.
func (s *Server) registerResources() {
	if s.ports.Content == nil {
		return
	}

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "content/{kind}",
		Name:        "content-list",
		Description: "Content items of one kind (file, text or document), newest first",
		MIMEType:    "application/json",
	}, s.handleContentListResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "content/{kind}/{id}",
		Name:        "content-item",
		Description: "Body of a text or document entry, or metadata of a file",
		MIMEType:    "text/plain",
	}, s.handleContentItemResource)
}

// contentInfo is the listing form of a content item.
type contentInfo struct {
	Ref       string                  `json:"ref"`
	Name      string                  `json:"name"`
	Status    domain.ProcessingStatus `json:"status"`
	CreatedAt string                  `json:"created_at"`
}

func (s *Server) handleContentListResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	kindPart, idPart := splitContentURI(req.Params.URI)
	if kindPart == "" || idPart != "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	kind, err := domain.ParseContentKind(kindPart)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	items, err := s.ports.Content.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s items: %w", kind, err)
	}

	infos := make([]contentInfo, 0, len(items))
	for i := range items {
		// The text listing includes documents; keep only the requested kind.
		if items[i].Kind != kind {
			continue
		}
		infos = append(infos, contentInfo{
			Ref:       items[i].Ref().String(),
			Name:      items[i].DisplayName(),
			Status:    items[i].Status,
			CreatedAt: items[i].CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling content list: %w", err)
	}
	return textResult(req.Params.URI, "application/json", string(data)), nil
}

func (s *Server) handleContentItemResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	kindPart, idPart := splitContentURI(req.Params.URI)
	if kindPart == "" || idPart == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	ref, err := domain.ParseContentRef(kindPart + ":" + idPart)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	item, err := s.ports.Content.Get(ctx, ref)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	if item.Text != nil {
		return textResult(req.Params.URI, "text/plain", item.Text.Body), nil
	}
	f := item.File
	text := fmt.Sprintf("name: %s\nmime_type: %s\nsize: %d\npath: %s\nstatus: %s\n",
		f.OriginalName, f.MIMEType, f.Size, f.StoragePath, item.Status)
	return textResult(req.Params.URI, "text/plain", text), nil
}

func textResult(uri, mimeType, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeType,
			Text:     text,
		}},
	}
}

// splitContentURI extracts kind and id from kbase://content/{kind}[/{id}].
func splitContentURI(uri string) (kind, id string) {
	const prefix = uriScheme + "content/"
	if !strings.HasPrefix(uri, prefix) {
		return "", ""
	}
	rest := strings.TrimPrefix(uri, prefix)
	kind, id, _ = strings.Cut(rest, "/")
	if strings.Contains(id, "/") {
		return "", ""
	}
	return kind, id
}
