// Package docindex provides embedded vector storage and semantic search over
// support documentation and release notes.
package docindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/ocakhasan/askdata/pkg/embedders"
)

// Collection names served by the search tools.
const (
	CollectionSupportDocs  = "support_docs"
	CollectionReleaseNotes = "release_notes"
)

// Document is a single search hit.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"similarity_score"`
}

// Index stores document chunks as vectors and serves similarity queries.
//
// Vectors live in memory with optional file persistence, so a single process
// can serve search with no external services.
type Index struct {
	db          *chromem.DB
	embedder    embedders.Embedder
	persistPath string
	compress    bool
	mu          sync.RWMutex

	collections map[string]*chromem.Collection
}

// Config configures the index.
type Config struct {
	// PersistPath enables file persistence when non-empty. The directory is
	// created if missing.
	PersistPath string

	// Compress enables gzip compression of the persisted file.
	Compress bool
}

// New creates an index backed by the given embedder.
func New(embedder embedders.Embedder, cfg Config) (*Index, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := filepath.Join(cfg.PersistPath, "vectors.gob")
		if cfg.Compress {
			dbPath += ".gz"
		}

		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("failed to load existing index, creating new", "path", dbPath, "error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("loaded document index", "path", dbPath)
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	return &Index{
		db:          db,
		embedder:    embedder,
		persistPath: cfg.PersistPath,
		compress:    cfg.Compress,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (idx *Index) getCollection(name string) (*chromem.Collection, error) {
	idx.mu.RLock()
	if col, ok := idx.collections[name]; ok {
		idx.mu.RUnlock()
		return col, nil
	}
	idx.mu.RUnlock()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if col, ok := idx.collections[name]; ok {
		return col, nil
	}

	// Vectors are pre-computed by the embedder; chromem must never embed.
	notReached := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}

	col, err := idx.db.GetOrCreateCollection(name, nil, notReached)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", name, err)
	}

	idx.collections[name] = col
	return col, nil
}

// Add embeds content and stores it under the given collection.
func (idx *Index) Add(ctx context.Context, collection, id, content string, metadata map[string]string) error {
	col, err := idx.getCollection(collection)
	if err != nil {
		return err
	}

	vector, err := idx.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed document %q: %w", id, err)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		Embedding: vector,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add document %q: %w", id, err)
	}

	return nil
}

// Search returns the topK most similar chunks for the query. When the
// collection holds fewer chunks than topK, all of them are returned.
func (idx *Index) Search(ctx context.Context, collection, query string, topK int) ([]Document, error) {
	col, err := idx.getCollection(collection)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return []Document{}, nil
	}
	if topK > count {
		topK = count
	}
	if topK <= 0 {
		topK = 1
	}

	vector, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, Document{
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Similarity,
		})
	}
	return docs, nil
}

// Count reports the number of chunks stored in a collection.
func (idx *Index) Count(collection string) (int, error) {
	col, err := idx.getCollection(collection)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Reset drops a collection so ingestion can rebuild it from scratch.
func (idx *Index) Reset(collection string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	delete(idx.collections, collection)
	return nil
}

// Close persists the index if persistence is enabled.
func (idx *Index) Close() error {
	if idx.persistPath == "" {
		return nil
	}

	dbPath := filepath.Join(idx.persistPath, "vectors.gob")
	if idx.compress {
		dbPath += ".gz"
	}
	if err := idx.db.Export(dbPath, idx.compress, ""); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}
