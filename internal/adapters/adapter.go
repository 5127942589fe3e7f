// Package adapters provides a uniform interface over the different backing
// stores a knowledge base graph can live in, plus a factory that picks the
// right implementation for a knowledge base identifier.
package adapters

import (
	"context"

	"github.com/fanlunting/yuxi2/internal/embedding"
	"github.com/fanlunting/yuxi2/internal/graph"
)

// GraphAdapter is a uniform interface over a specific backing knowledge
// graph store. Every call to the factory constructs a fresh instance;
// ownership transfers to the caller.
type GraphAdapter interface {
	// Type returns the adapter's type tag
	Type() string

	// SampleGraph returns up to limit nodes plus the edges between them
	SampleGraph(ctx context.Context, limit int) (*graph.Subgraph, error)

	// SearchNodes finds nodes matching the query string
	SearchNodes(ctx context.Context, query string, limit int) ([]graph.Entity, error)

	// Labels returns the label inventory of the knowledge base
	Labels(ctx context.Context) ([]string, error)

	// Stats returns node and edge counts
	Stats(ctx context.Context) (*graph.Stats, error)

	// Close releases adapter-held resources. Shared collaborators passed in
	// through Options stay open.
	Close() error
}

// Config is the named-option mapping passed to adapter constructors.
// The factory fills in the fields the detected type needs; constructors
// validate only what they use.
type Config struct {
	// KBID is the knowledge base identifier (all types)
	KBID string
	// KGDBName is the Neo4j database name (upload type)
	KGDBName string
	// KBLabel is the derived namespacing label (upload type)
	KBLabel string
	// BaseURL is the LightRAG server address (lightrag type)
	BaseURL string
}

// Options carries a constructor's configuration plus shared collaborators
type Options struct {
	Config   Config
	GraphDB  *graph.Store
	Embedder *embedding.Client
}

// Constructor builds a configured adapter from options
type Constructor func(opts Options) (GraphAdapter, error)

// KBClassifier is the narrow manager contract the factory consumes to
// detect LightRAG-backed knowledge bases
type KBClassifier interface {
	IsLightRAGDatabase(kbID string) bool
}
