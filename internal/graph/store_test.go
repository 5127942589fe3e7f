package graph

import (
	"context"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// TestStore requires a running Neo4j instance on bolt://localhost:7687
func TestStore_UpsertAndSample(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	store, scope := newTestStore(t)
	defer cleanupScope(t, store, scope)

	entities := []Entity{
		{ID: "e1", Name: "Alice", Type: "Person"},
		{ID: "e2", Name: "Paris", Type: "Place"},
	}
	for _, e := range entities {
		if err := store.UpsertEntity(ctx, scope, e, nil); err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
	}
	if err := store.UpsertRelation(ctx, scope, Relation{SourceID: "e1", TargetID: "e2", Type: "LIVES_IN", Weight: 0.8}); err != nil {
		t.Fatalf("UpsertRelation failed: %v", err)
	}

	sub, err := store.Sample(ctx, scope, 10)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(sub.Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(sub.Nodes))
	}
	if len(sub.Edges) != 1 {
		t.Errorf("Expected 1 edge, got %d", len(sub.Edges))
	}
	if len(sub.Edges) == 1 && sub.Edges[0].Type != "LIVES_IN" {
		t.Errorf("Expected LIVES_IN edge, got %s", sub.Edges[0].Type)
	}
}

func TestStore_SearchEntities(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	store, scope := newTestStore(t)
	defer cleanupScope(t, store, scope)

	if err := store.UpsertEntity(ctx, scope, Entity{ID: "e1", Name: "Knowledge Graph", Type: "Concept"}, nil); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	matches, err := store.SearchEntities(ctx, scope, "knowledge", 10)
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].Name != "Knowledge Graph" {
		t.Errorf("Expected 'Knowledge Graph', got '%s'", matches[0].Name)
	}

	none, err := store.SearchEntities(ctx, scope, "missingterm", 10)
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no matches, got %d", len(none))
	}
}

func TestStore_LabelsAndStats(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	store, scope := newTestStore(t)
	defer cleanupScope(t, store, scope)

	for _, e := range []Entity{
		{ID: "e1", Name: "Alice", Type: "Person"},
		{ID: "e2", Name: "Bob", Type: "Person"},
		{ID: "e3", Name: "Paris", Type: "Place"},
	} {
		if err := store.UpsertEntity(ctx, scope, e, nil); err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
	}

	labels, err := store.Labels(ctx, scope)
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}
	if len(labels) != 2 {
		t.Errorf("Expected 2 labels, got %v", labels)
	}

	stats, err := store.Stats(ctx, scope)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.NodeCount != 3 {
		t.Errorf("Expected 3 nodes, got %d", stats.NodeCount)
	}
	if stats.EdgeCount != 0 {
		t.Errorf("Expected 0 edges, got %d", stats.EdgeCount)
	}
}

func TestStore_Wipe(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	store, scope := newTestStore(t)
	defer cleanupScope(t, store, scope)

	if err := store.UpsertEntity(ctx, scope, Entity{ID: "e1", Name: "Alice", Type: "Person"}, nil); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	if err := store.Wipe(ctx, scope); err != nil {
		t.Fatalf("Wipe failed: %v", err)
	}

	stats, err := store.Stats(ctx, scope)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.NodeCount != 0 {
		t.Errorf("Expected empty graph after wipe, got %d nodes", stats.NodeCount)
	}
}

func newTestStore(t *testing.T) (*Store, Scope) {
	t.Helper()

	driver, err := neo4j.NewDriverWithContext("bolt://localhost:7687", neo4j.BasicAuth("neo4j", "password", ""))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		t.Fatalf("Failed to verify Neo4j connectivity: %v", err)
	}
	t.Cleanup(func() { driver.Close(context.Background()) })

	scope := Scope{Label: "TestKb" + time.Now().Format("20060102150405")}
	return NewStore(driver), scope
}

func cleanupScope(t *testing.T, store *Store, scope Scope) {
	t.Helper()
	if err := store.Wipe(context.Background(), scope); err != nil {
		t.Logf("cleanup failed: %v", err)
	}
}
