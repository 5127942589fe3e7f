package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Helper functions for pulling typed values out of Neo4j records

func getString(record *neo4j.Record, key string, defaultValue string) string {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getInt64(record *neo4j.Record, key string, defaultValue int64) int64 {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if n, ok := val.(int64); ok {
		return n
	}
	return defaultValue
}

func getFloat64(record *neo4j.Record, key string, defaultValue float64) float64 {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return defaultValue
}

func getStringFromMap(m map[string]any, key string, defaultValue string) string {
	val, ok := m[key]
	if !ok {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getFloat64FromMap(m map[string]any, key string, defaultValue float64) float64 {
	val, ok := m[key]
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return defaultValue
}

// entityFromMap builds an Entity from a node projection map
func entityFromMap(m map[string]any) Entity {
	e := Entity{
		ID:   getStringFromMap(m, "id", ""),
		Name: getStringFromMap(m, "name", ""),
		Type: getStringFromMap(m, "type", ""),
	}
	if props, ok := m["properties"].(map[string]any); ok {
		e.Properties = props
	}
	return e
}

// float32sToFloat64s converts an embedding vector into the representation
// the Neo4j driver accepts as a query parameter
func float32sToFloat64s(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
