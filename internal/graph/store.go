package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
)

// Store handles all Neo4j database operations for upload-type knowledge graphs
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewStore creates a new graph store on top of an existing driver.
// The store does not own the driver; the caller closes it.
func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		logger: logger.Named("graph"),
	}
}

// Close closes the Neo4j driver connection
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Store) session(ctx context.Context, scope Scope, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: scope.Database,
	})
}

// UpsertEntity creates or updates an entity node under the scope's label.
// The embedding is optional and stored on the node when present.
func (s *Store) UpsertEntity(ctx context.Context, scope Scope, entity Entity, embedding []float32) error {
	session := s.session(ctx, scope, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Labels cannot be parameterized in Cypher; scope labels come from
	// kb.DeriveNodeLabel and contain only [A-Za-z0-9_].
	query := fmt.Sprintf(`
		MERGE (n:%s {id: $id})
		SET n.name = $name,
		    n.type = $type,
		    n.updated_at = datetime()
	`, scope.Label)

	params := map[string]any{
		"id":   entity.ID,
		"name": entity.Name,
		"type": entity.Type,
	}
	if len(embedding) > 0 {
		query += ", n.embedding = $embedding"
		params["embedding"] = float32sToFloat64s(embedding)
	}

	_, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

// UpsertRelation creates or updates a relation between two entities.
// Both endpoints must already exist under the scope's label.
func (s *Store) UpsertRelation(ctx context.Context, scope Scope, rel Relation) error {
	session := s.session(ctx, scope, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (a:%s {id: $sourceID})
		MATCH (b:%s {id: $targetID})
		MERGE (a)-[r:%s]->(b)
		SET r.weight = $weight,
		    r.updated_at = datetime()
	`, scope.Label, scope.Label, relationType(rel.Type))

	_, err := session.Run(ctx, query, map[string]any{
		"sourceID": rel.SourceID,
		"targetID": rel.TargetID,
		"weight":   rel.Weight,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert relation: %w", err)
	}
	return nil
}

// Sample returns up to limit entities plus the relations between them
func (s *Store) Sample(ctx context.Context, scope Scope, limit int) (*Subgraph, error) {
	session := s.session(ctx, scope, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (n:%s)
		WITH n LIMIT $limit
		OPTIONAL MATCH (n)-[r]->(m:%s)
		RETURN {id: n.id, name: n.name, type: n.type} AS node,
		       CASE WHEN r IS NULL THEN NULL
		            ELSE {source_id: n.id, target_id: m.id, type: type(r), weight: coalesce(r.weight, 0.0)}
		       END AS edge
	`, scope.Label, scope.Label)

	result, err := session.Run(ctx, query, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to sample graph: %w", err)
	}

	sub := &Subgraph{Nodes: []Entity{}, Edges: []Relation{}}
	seen := make(map[string]bool)

	for result.Next(ctx) {
		record := result.Record()

		if nodeVal, ok := record.Get("node"); ok {
			if nodeMap, ok := nodeVal.(map[string]any); ok {
				entity := entityFromMap(nodeMap)
				if entity.ID != "" && !seen[entity.ID] {
					seen[entity.ID] = true
					sub.Nodes = append(sub.Nodes, entity)
				}
			}
		}

		if edgeVal, ok := record.Get("edge"); ok && edgeVal != nil {
			if edgeMap, ok := edgeVal.(map[string]any); ok {
				sub.Edges = append(sub.Edges, Relation{
					SourceID: getStringFromMap(edgeMap, "source_id", ""),
					TargetID: getStringFromMap(edgeMap, "target_id", ""),
					Type:     getStringFromMap(edgeMap, "type", ""),
					Weight:   getFloat64FromMap(edgeMap, "weight", 0),
				})
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sample records: %w", err)
	}

	return sub, nil
}

// SearchEntities finds entities whose name contains the query, case-insensitively
func (s *Store) SearchEntities(ctx context.Context, scope Scope, query string, limit int) ([]Entity, error) {
	session := s.session(ctx, scope, neo4j.AccessModeRead)
	defer session.Close(ctx)

	cypher := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE toLower(n.name) CONTAINS toLower($query)
		RETURN n.id AS id, n.name AS name, n.type AS type
		LIMIT $limit
	`, scope.Label)

	result, err := session.Run(ctx, cypher, map[string]any{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}

	entities := []Entity{}
	for result.Next(ctx) {
		record := result.Record()
		entities = append(entities, Entity{
			ID:   getString(record, "id", ""),
			Name: getString(record, "name", ""),
			Type: getString(record, "type", ""),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search records: %w", err)
	}

	return entities, nil
}

// SearchByEmbedding runs a vector similarity search over the scope's vector
// index, dropping results below the score threshold
func (s *Store) SearchByEmbedding(ctx context.Context, scope Scope, embedding []float32, topK int, threshold float64) ([]ScoredEntity, error) {
	session := s.session(ctx, scope, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		CALL db.index.vector.queryNodes($indexName, $topK, $embedding)
		YIELD node, score
		WHERE score >= $threshold
		RETURN node.id AS id, node.name AS name, node.type AS type, score
	`

	result, err := session.Run(ctx, query, map[string]any{
		"indexName": vectorIndexName(scope.Label),
		"topK":      topK,
		"embedding": float32sToFloat64s(embedding),
		"threshold": threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}

	results := []ScoredEntity{}
	for result.Next(ctx) {
		record := result.Record()
		results = append(results, ScoredEntity{
			Entity: Entity{
				ID:   getString(record, "id", ""),
				Name: getString(record, "name", ""),
				Type: getString(record, "type", ""),
			},
			Score: getFloat64(record, "score", 0),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vector search records: %w", err)
	}

	return results, nil
}

// EnsureVectorIndex creates the scope's vector index if it does not exist
func (s *Store) EnsureVectorIndex(ctx context.Context, scope Scope, dimensions int) error {
	session := s.session(ctx, scope, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		CREATE VECTOR INDEX %s IF NOT EXISTS
		FOR (n:%s) ON (n.embedding)
		OPTIONS {indexConfig: {
			`+"`vector.dimensions`"+`: %d,
			`+"`vector.similarity_function`"+`: 'cosine'
		}}
	`, vectorIndexName(scope.Label), scope.Label, dimensions)

	if _, err := session.Run(ctx, query, nil); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	s.logger.Info("Vector index ensured",
		zap.String("label", scope.Label),
		zap.Int("dimensions", dimensions),
	)
	return nil
}

// Labels returns the distinct entity types present in the scope
func (s *Store) Labels(ctx context.Context, scope Scope) ([]string, error) {
	session := s.session(ctx, scope, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE n.type IS NOT NULL
		RETURN DISTINCT n.type AS type
		ORDER BY type
	`, scope.Label)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	labels := []string{}
	for result.Next(ctx) {
		if t := getString(result.Record(), "type", ""); t != "" {
			labels = append(labels, t)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read label records: %w", err)
	}

	return labels, nil
}

// Stats returns node and edge counts for the scope
func (s *Store) Stats(ctx context.Context, scope Scope) (*Stats, error) {
	session := s.session(ctx, scope, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (n:%s)
		OPTIONAL MATCH (n)-[r]->(:%s)
		RETURN count(DISTINCT n) AS nodes, count(r) AS edges
	`, scope.Label, scope.Label)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count graph: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read count record: %w", err)
	}

	return &Stats{
		NodeCount: getInt64(record, "nodes", 0),
		EdgeCount: getInt64(record, "edges", 0),
	}, nil
}

// Wipe removes every node and relation under the scope's label
func (s *Store) Wipe(ctx context.Context, scope Scope) error {
	session := s.session(ctx, scope, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s) DETACH DELETE n`, scope.Label)
	if _, err := session.Run(ctx, query, nil); err != nil {
		return fmt.Errorf("failed to wipe graph: %w", err)
	}

	s.logger.Info("Graph wiped", zap.String("label", scope.Label))
	return nil
}

func vectorIndexName(label string) string {
	return strings.ToLower(label) + "_embedding"
}

// relationType restricts relation type names to characters that are safe to
// interpolate into Cypher
func relationType(t string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(t) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}
