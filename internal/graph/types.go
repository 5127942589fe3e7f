package graph

// Entity is a node in a knowledge graph
type Entity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Relation is a directed edge between two entities
type Relation struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Type     string  `json:"type"`
	Weight   float64 `json:"weight,omitempty"`
}

// Subgraph is a set of entities and the relations between them
type Subgraph struct {
	Nodes []Entity   `json:"nodes"`
	Edges []Relation `json:"edges"`
}

// ScoredEntity is an entity with a similarity score attached
type ScoredEntity struct {
	Entity
	Score float64 `json:"score"`
}

// Stats summarizes the size of a knowledge graph
type Stats struct {
	NodeCount int64 `json:"node_count"`
	EdgeCount int64 `json:"edge_count"`
}

// Scope selects the Neo4j database and the node label a knowledge base is
// isolated under. Neo4j Community runs a single database, so upload-type
// knowledge bases share one database and are namespaced by label.
type Scope struct {
	Database string
	Label    string
}
