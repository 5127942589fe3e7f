package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/fanlunting/yuxi2/internal/graph"
	"github.com/fanlunting/yuxi2/internal/kb"
	apperrors "github.com/fanlunting/yuxi2/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// stubClassifier marks a fixed set of identifiers as LightRAG-backed
type stubClassifier struct {
	lightrag map[string]bool
}

func (s *stubClassifier) IsLightRAGDatabase(kbID string) bool {
	return s.lightrag[kbID]
}

// fakeAdapter records which constructor produced it
type fakeAdapter struct {
	tag  string
	opts Options
}

func (f *fakeAdapter) Type() string { return f.tag }
func (f *fakeAdapter) SampleGraph(ctx context.Context, limit int) (*graph.Subgraph, error) {
	return &graph.Subgraph{}, nil
}
func (f *fakeAdapter) SearchNodes(ctx context.Context, query string, limit int) ([]graph.Entity, error) {
	return nil, nil
}
func (f *fakeAdapter) Labels(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeAdapter) Stats(ctx context.Context) (*graph.Stats, error) {
	return &graph.Stats{}, nil
}
func (f *fakeAdapter) Close() error { return nil }

func fakeConstructor(tag string, captured *Options) Constructor {
	return func(opts Options) (GraphAdapter, error) {
		if captured != nil {
			*captured = opts
		}
		return &fakeAdapter{tag: tag, opts: opts}, nil
	}
}

func newTestStore(t *testing.T) *graph.Store {
	t.Helper()
	// The driver connects lazily; no Neo4j instance is needed here
	driver, err := neo4j.NewDriverWithContext("bolt://localhost:7687", neo4j.BasicAuth("neo4j", "password", ""))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	t.Cleanup(func() { driver.Close(context.Background()) })
	return graph.NewStore(driver)
}

func TestFactory_Create_UnknownType(t *testing.T) {
	factory := NewFactory()

	_, err := factory.Create("__nonexistent__", Options{})
	assert.Error(t, err)

	var unknownErr *apperrors.ErrUnknownGraphType
	assert.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "__nonexistent__", unknownErr.Tag)
}

func TestFactory_Register_NewType(t *testing.T) {
	factory := NewFactory()
	factory.Register("custom", fakeConstructor("custom", nil))

	adapter, err := factory.Create("custom", Options{})
	assert.NoError(t, err)
	assert.Equal(t, "custom", adapter.Type())
}

func TestFactory_Register_Overwrite(t *testing.T) {
	factory := NewFactory()
	factory.Register("custom", fakeConstructor("first", nil))
	factory.Register("custom", fakeConstructor("second", nil))

	adapter, err := factory.Create("custom", Options{})
	assert.NoError(t, err)
	assert.Equal(t, "second", adapter.Type())
}

func TestFactory_Create_PassesOptionsThrough(t *testing.T) {
	factory := NewFactory()
	var captured Options
	factory.Register("custom", fakeConstructor("custom", &captured))

	opts := Options{Config: Config{KBID: "kb-1", KBLabel: "Lbl", KGDBName: "db"}}
	_, err := factory.Create("custom", opts)
	assert.NoError(t, err)
	assert.Equal(t, opts, captured)
}

func TestFactory_DetectType(t *testing.T) {
	factory := NewFactory()
	manager := &stubClassifier{lightrag: map[string]bool{"kb-lr": true}}

	tests := []struct {
		name    string
		kbID    string
		manager KBClassifier
		want    string
	}{
		{"no manager", "kb-42", nil, TypeUpload},
		{"manager reports false", "kb-42", manager, TypeUpload},
		{"manager reports true", "kb-lr", manager, TypeLightRAG},
		{"empty identifier", "", manager, TypeUpload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, factory.DetectType(tt.kbID, tt.manager))
		})
	}
}

func TestFactory_SupportedTypes(t *testing.T) {
	factory := NewFactory()
	factory.Register("custom", fakeConstructor("custom", nil))

	supported := factory.SupportedTypes()

	// Only the built-ins are described, even after custom registrations
	assert.Len(t, supported, 2)
	assert.NotEmpty(t, supported[TypeUpload])
	assert.NotEmpty(t, supported[TypeLightRAG])
}

func TestFactory_CreateForKB_UploadDefaults(t *testing.T) {
	t.Setenv("NEO4J_DATABASE", "")

	factory := NewFactory()
	var captured Options
	factory.Register(TypeUpload, fakeConstructor(TypeUpload, &captured))

	store := newTestStore(t)
	adapter, err := factory.CreateForKB("kb-42", nil, store)
	assert.NoError(t, err)
	assert.Equal(t, TypeUpload, adapter.Type())

	assert.Equal(t, store, captured.GraphDB)
	assert.Equal(t, "neo4j", captured.Config.KGDBName)
	assert.Equal(t, kb.DeriveNodeLabel("kb-42"), captured.Config.KBLabel)
	assert.Equal(t, "kb-42", captured.Config.KBID)
}

func TestFactory_CreateForKB_UploadDatabaseFromEnv(t *testing.T) {
	t.Setenv("NEO4J_DATABASE", "mydb")

	factory := NewFactory()
	var captured Options
	factory.Register(TypeUpload, fakeConstructor(TypeUpload, &captured))

	_, err := factory.CreateForKB("kb-42", nil, newTestStore(t))
	assert.NoError(t, err)
	assert.Equal(t, "mydb", captured.Config.KGDBName)
}

func TestFactory_CreateForKB_LightRAG(t *testing.T) {
	factory := NewFactory(WithLightRAGBaseURL("http://localhost:9621"))
	var captured Options
	factory.Register(TypeLightRAG, fakeConstructor(TypeLightRAG, &captured))

	manager := &stubClassifier{lightrag: map[string]bool{"kb-lr": true}}
	adapter, err := factory.CreateForKB("kb-lr", manager, newTestStore(t))
	assert.NoError(t, err)
	assert.Equal(t, TypeLightRAG, adapter.Type())

	assert.Equal(t, "kb-lr", captured.Config.KBID)
	// The graph store is never forwarded on the lightrag path
	assert.Nil(t, captured.GraphDB)
	assert.Empty(t, captured.Config.KGDBName)
	assert.Empty(t, captured.Config.KBLabel)
}

func TestFactory_CreateForDatabaseID_Delegates(t *testing.T) {
	t.Setenv("NEO4J_DATABASE", "")

	factory := NewFactory()
	var captured Options
	factory.Register(TypeUpload, fakeConstructor(TypeUpload, &captured))

	adapter, err := factory.CreateForDatabaseID("kb-42", nil, newTestStore(t))
	assert.NoError(t, err)
	assert.Equal(t, TypeUpload, adapter.Type())
	assert.Equal(t, "kb-42", captured.Config.KBID)
}

func TestFactory_CreateForKB_ConstructorErrorPropagates(t *testing.T) {
	factory := NewFactory()
	ctorErr := errors.New("constructor exploded")
	factory.Register(TypeUpload, func(opts Options) (GraphAdapter, error) {
		return nil, ctorErr
	})

	_, err := factory.CreateForKB("kb-42", nil, newTestStore(t))
	assert.ErrorIs(t, err, ctorErr)
}

func TestNewUploadAdapter_RequiresGraphStore(t *testing.T) {
	_, err := NewUploadAdapter(Options{Config: Config{KBLabel: "Lbl"}})
	assert.Error(t, err)

	var misconfigured *apperrors.ErrAdapterMisconfigured
	assert.True(t, errors.As(err, &misconfigured))
	assert.Equal(t, TypeUpload, misconfigured.AdapterType)
}

func TestNewUploadAdapter_RequiresLabel(t *testing.T) {
	_, err := NewUploadAdapter(Options{GraphDB: newTestStore(t)})
	assert.Error(t, err)
}

func TestNewLightRAGAdapter_RequiresBaseURL(t *testing.T) {
	t.Setenv("LIGHTRAG_URL", "")

	_, err := NewLightRAGAdapter(Options{Config: Config{KBID: "kb-lr"}})
	assert.Error(t, err)

	var misconfigured *apperrors.ErrAdapterMisconfigured
	assert.True(t, errors.As(err, &misconfigured))
	assert.Equal(t, TypeLightRAG, misconfigured.AdapterType)
}

func TestNewLightRAGAdapter_BaseURLFromEnv(t *testing.T) {
	t.Setenv("LIGHTRAG_URL", "http://lightrag.local:9621/")

	adapter, err := NewLightRAGAdapter(Options{Config: Config{KBID: "kb-lr"}})
	assert.NoError(t, err)

	lr := adapter.(*LightRAGAdapter)
	assert.Equal(t, "http://lightrag.local:9621", lr.baseURL)
	assert.Equal(t, "kb-lr", lr.KBID())
}
