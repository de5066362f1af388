package memory

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
)

// VectorIndex is the semantic half of the store: one persistent
// chromem-go collection per user, holding one embedding per record.
//
// The index never computes embeddings itself; it hands ready-to-embed
// text to the configured EmbeddingProvider. Archiving a record removes
// its entry from the candidate set, so semantic queries exclude it the
// same way the relational side excludes archived rows.
type VectorIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   EmbeddingProvider
	logger     zerolog.Logger
}

// VectorHit is one semantic match.
type VectorHit struct {
	ID         string
	Similarity float64
}

// NewVectorIndex opens or creates the persistent collection under dir.
func NewVectorIndex(dir, userID string, embedder EmbeddingProvider, logger zerolog.Logger) (*VectorIndex, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	// Embeddings are always supplied explicitly, so no embedding func is
	// registered with the collection.
	col, err := db.GetOrCreateCollection("memories", map[string]string{"user_id": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector collection: %w", err)
	}

	return &VectorIndex{
		db:         db,
		collection: col,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Upsert stores or replaces the embedding for one record.
func (v *VectorIndex) Upsert(ctx context.Context, id, text string, metadata map[string]string) error {
	embedding, err := v.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	// Drop any previous entry for this id before re-adding.
	_ = v.collection.Delete(ctx, nil, nil, id)

	err = v.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Query returns ids ranked by cosine similarity to the query text.
// Optional metadata filters (type, project) narrow the candidate set.
func (v *VectorIndex) Query(ctx context.Context, query string, limit int, where map[string]string) ([]VectorHit, error) {
	embedding, err := v.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	// chromem rejects nResults greater than the collection size.
	n := limit
	if count := v.collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := v.collection.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, VectorHit{ID: r.ID, Similarity: float64(r.Similarity)})
	}
	return hits, nil
}

// MarkArchived removes the record from the semantic candidate set. The
// relational row keeps the archived flag; the vector entry is simply no
// longer queryable.
func (v *VectorIndex) MarkArchived(ctx context.Context, id string) error {
	return v.collection.Delete(ctx, nil, nil, id)
}

// Delete removes the embedding for one record.
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	return v.collection.Delete(ctx, nil, nil, id)
}

// Count returns the number of queryable embeddings.
func (v *VectorIndex) Count() int {
	return v.collection.Count()
}

// Close is a no-op hook kept for symmetry with the relational side;
// chromem persists on every write.
func (v *VectorIndex) Close() {}
