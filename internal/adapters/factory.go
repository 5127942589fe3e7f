package adapters

import (
	"os"
	"sync"

	"github.com/fanlunting/yuxi2/internal/embedding"
	"github.com/fanlunting/yuxi2/internal/graph"
	"github.com/fanlunting/yuxi2/internal/kb"
	apperrors "github.com/fanlunting/yuxi2/pkg/errors"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
)

// Built-in adapter type tags
const (
	TypeUpload   = "upload"
	TypeLightRAG = "lightrag"
)

// Factory maps type tags to adapter constructors and builds the right
// adapter for a knowledge base identifier
type Factory struct {
	mu       sync.RWMutex
	registry map[string]Constructor

	embedder        *embedding.Client
	lightRAGBaseURL string
	logger          *zap.Logger
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithEmbedder supplies the embedding client forwarded to upload adapters
func WithEmbedder(client *embedding.Client) FactoryOption {
	return func(f *Factory) {
		f.embedder = client
	}
}

// WithLightRAGBaseURL overrides the LightRAG server address forwarded to
// lightrag adapters
func WithLightRAGBaseURL(baseURL string) FactoryOption {
	return func(f *Factory) {
		f.lightRAGBaseURL = baseURL
	}
}

// NewFactory creates a factory pre-populated with the built-in adapter types
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		registry: map[string]Constructor{
			TypeUpload:   NewUploadAdapter,
			TypeLightRAG: NewLightRAGAdapter,
		},
		logger: logger.Named("adapters"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register inserts or overwrites the constructor for a type tag.
// This is the sole mutation entry point for the registry.
func (f *Factory) Register(tag string, ctor Constructor) {
	f.mu.Lock()
	f.registry[tag] = ctor
	f.mu.Unlock()

	f.logger.Debug("Adapter type registered", zap.String("type", tag))
}

// Create looks up the constructor for the type tag and invokes it with the
// supplied options. Returns ErrUnknownGraphType for unregistered tags;
// constructor errors propagate unchanged.
func (f *Factory) Create(tag string, opts Options) (GraphAdapter, error) {
	f.mu.RLock()
	ctor, ok := f.registry[tag]
	f.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewUnknownGraphType(tag)
	}
	return ctor(opts)
}

// SupportedTypes returns descriptions of the built-in adapter types.
// Custom types added through Register are not described here.
func (f *Factory) SupportedTypes() map[string]string {
	return map[string]string{
		TypeUpload:   "Upload graph - shared Neo4j store with embedding and threshold search",
		TypeLightRAG: "LightRAG graph - kb_id scoped graph served by a LightRAG server",
	}
}

// DetectType decides which adapter type backs a knowledge base identifier.
// It is total: every identifier maps to one of the two built-in tags.
func (f *Factory) DetectType(kbID string, manager KBClassifier) string {
	if manager != nil && manager.IsLightRAGDatabase(kbID) {
		return TypeLightRAG
	}
	// Everything else, including a nil manager, is upload-backed
	return TypeUpload
}

// CreateForKB detects the adapter type for the identifier and builds a
// configured adapter for it. graphDB is only forwarded on the upload path.
func (f *Factory) CreateForKB(kbID string, manager KBClassifier, graphDB *graph.Store) (GraphAdapter, error) {
	tag := f.DetectType(kbID, manager)

	if tag == TypeLightRAG {
		return f.Create(TypeLightRAG, Options{
			Config: Config{
				KBID:    kbID,
				BaseURL: f.lightRAGBaseURL,
			},
		})
	}

	// Neo4j Community runs a single database; kb_label isolates the data
	return f.Create(TypeUpload, Options{
		GraphDB:  graphDB,
		Embedder: f.embedder,
		Config: Config{
			KGDBName: envOr("NEO4J_DATABASE", "neo4j"),
			KBLabel:  kb.DeriveNodeLabel(kbID),
			KBID:     kbID,
		},
	})
}

// CreateForDatabaseID is the legacy name for CreateForKB, kept for callers
// that predate the rename
func (f *Factory) CreateForDatabaseID(kbID string, manager KBClassifier, graphDB *graph.Store) (GraphAdapter, error) {
	return f.CreateForKB(kbID, manager, graphDB)
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
