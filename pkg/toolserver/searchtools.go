package toolserver

import (
	"context"

	"github.com/ocakhasan/askdata/pkg/docindex"
)

const defaultTopK = 3

func (s *Server) searchSupportDocs(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	return s.search(ctx, docindex.CollectionSupportDocs, "Support docs collection not initialized", args)
}

func (s *Server) searchReleaseNotes(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	return s.search(ctx, docindex.CollectionReleaseNotes, "Release notes collection not initialized", args)
}

func (s *Server) search(ctx context.Context, collection, notReadyMsg string, args map[string]interface{}) map[string]interface{} {
	if s.index == nil {
		return map[string]interface{}{
			"success": false,
			"error":   notReadyMsg,
		}
	}

	query, _ := args["query"].(string)

	topK := defaultTopK
	// JSON numbers decode as float64.
	if k, ok := args["top_k"].(float64); ok && int(k) > 0 {
		topK = int(k)
	}

	docs, err := s.index.Search(ctx, collection, query, topK)
	if err != nil {
		return failure(err)
	}

	documents := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		documents = append(documents, map[string]interface{}{
			"content":          doc.Content,
			"metadata":         doc.Metadata,
			"similarity_score": doc.Score,
		})
	}

	return map[string]interface{}{
		"success":   true,
		"documents": documents,
		"query":     query,
	}
}
