package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/fanlunting/yuxi2/internal/embedding"
	"github.com/fanlunting/yuxi2/internal/graph"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// embedConcurrency bounds parallel embedding requests per document
const embedConcurrency = 4

// Document is a unit of content to load into an upload knowledge graph
type Document struct {
	ID     string
	Source string
	Text   string
}

// Ingester chunks documents, embeds the chunks and writes them into the
// shared graph store
type Ingester struct {
	store        *graph.Store
	embedder     *embedding.Client
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

// NewIngester creates an ingester. The embedder may be nil; chunks are then
// stored without embeddings and only substring search will find them.
func NewIngester(store *graph.Store, embedder *embedding.Client, chunkSize, chunkOverlap int) *Ingester {
	return &Ingester{
		store:        store,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger.Named("ingest"),
	}
}

// IngestDocument writes a document node plus its chunk entities and
// MENTIONS edges into the scope's graph
func (ing *Ingester) IngestDocument(ctx context.Context, scope graph.Scope, doc Document) (int, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	chunks := Chunk(doc.Text, ing.chunkSize, ing.chunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s has no content", doc.ID)
	}

	vectors := make([][]float32, len(chunks))
	if ing.embedder != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(embedConcurrency)
		for i, chunk := range chunks {
			g.Go(func() error {
				vec, err := ing.embedder.EmbedOne(gctx, chunk)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i, err)
				}
				vectors[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	docEntity := graph.Entity{
		ID:   doc.ID,
		Name: doc.Source,
		Type: "Document",
	}
	if err := ing.store.UpsertEntity(ctx, scope, docEntity, nil); err != nil {
		return 0, err
	}

	for i, chunk := range chunks {
		entity := graph.Entity{
			ID:   fmt.Sprintf("%s#%d", doc.ID, i),
			Name: chunk,
			Type: "Chunk",
		}
		if err := ing.store.UpsertEntity(ctx, scope, entity, vectors[i]); err != nil {
			return i, err
		}
		rel := graph.Relation{
			SourceID: doc.ID,
			TargetID: entity.ID,
			Type:     "MENTIONS",
			Weight:   1.0,
		}
		if err := ing.store.UpsertRelation(ctx, scope, rel); err != nil {
			return i, err
		}
	}

	ing.logger.Info("Document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("source", doc.Source),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}
