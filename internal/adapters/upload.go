package adapters

import (
	"context"

	"github.com/fanlunting/yuxi2/internal/embedding"
	"github.com/fanlunting/yuxi2/internal/graph"
	apperrors "github.com/fanlunting/yuxi2/pkg/errors"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
)

// uploadScoreThreshold drops low-similarity matches from embedding search
const uploadScoreThreshold = 0.6

// UploadAdapter serves knowledge bases stored in the shared Neo4j database,
// isolated under the knowledge base's derived node label
type UploadAdapter struct {
	store    *graph.Store
	embedder *embedding.Client
	scope    graph.Scope
	kbID     string
	logger   *zap.Logger
}

// NewUploadAdapter builds an upload adapter from factory options.
// A graph store is required; the embedder is optional and enables
// similarity search when present.
func NewUploadAdapter(opts Options) (GraphAdapter, error) {
	if opts.GraphDB == nil {
		return nil, apperrors.NewAdapterMisconfigured(TypeUpload, "graph store is required")
	}
	if opts.Config.KBLabel == "" {
		return nil, apperrors.NewAdapterMisconfigured(TypeUpload, "kb label is required")
	}

	return &UploadAdapter{
		store:    opts.GraphDB,
		embedder: opts.Embedder,
		scope: graph.Scope{
			Database: opts.Config.KGDBName,
			Label:    opts.Config.KBLabel,
		},
		kbID:   opts.Config.KBID,
		logger: logger.Named("adapter.upload"),
	}, nil
}

// Type returns the adapter's type tag
func (a *UploadAdapter) Type() string {
	return TypeUpload
}

// KBID returns the knowledge base identifier this adapter serves
func (a *UploadAdapter) KBID() string {
	return a.kbID
}

// Scope returns the Neo4j scope the adapter operates in
func (a *UploadAdapter) Scope() graph.Scope {
	return a.scope
}

// SampleGraph returns up to limit entities plus the relations between them
func (a *UploadAdapter) SampleGraph(ctx context.Context, limit int) (*graph.Subgraph, error) {
	return a.store.Sample(ctx, a.scope, limit)
}

// SearchNodes finds entities matching the query. With an embedder configured
// it runs an embedding similarity search with a score threshold; otherwise it
// falls back to substring matching.
func (a *UploadAdapter) SearchNodes(ctx context.Context, query string, limit int) ([]graph.Entity, error) {
	if a.embedder == nil {
		return a.store.SearchEntities(ctx, a.scope, query, limit)
	}

	vector, err := a.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := a.store.SearchByEmbedding(ctx, a.scope, vector, limit, uploadScoreThreshold)
	if err != nil {
		return nil, err
	}

	entities := make([]graph.Entity, 0, len(scored))
	for _, s := range scored {
		entities = append(entities, s.Entity)
	}

	a.logger.Debug("Embedding search completed",
		zap.String("kb_id", a.kbID),
		zap.Int("matches", len(entities)),
	)
	return entities, nil
}

// Labels returns the distinct entity types in the knowledge base
func (a *UploadAdapter) Labels(ctx context.Context) ([]string, error) {
	return a.store.Labels(ctx, a.scope)
}

// Stats returns node and edge counts for the knowledge base
func (a *UploadAdapter) Stats(ctx context.Context) (*graph.Stats, error) {
	return a.store.Stats(ctx, a.scope)
}

// Wipe removes all data for the knowledge base from the shared store
func (a *UploadAdapter) Wipe(ctx context.Context) error {
	return a.store.Wipe(ctx, a.scope)
}

// Close is a no-op: the graph store is shared and owned by the caller
func (a *UploadAdapter) Close() error {
	return nil
}
