package kb

import "strings"

// DeriveNodeLabel maps a knowledge base identifier to the Neo4j node label
// used to namespace its data inside the shared database.
//
// The mapping is deterministic: the same identifier always yields the same
// label. The result contains only [A-Za-z0-9_] and never starts with a digit,
// so it is safe to interpolate into Cypher.
func DeriveNodeLabel(kbID string) string {
	var b strings.Builder
	for _, r := range kbID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	label := b.String()
	if label == "" || (label[0] >= '0' && label[0] <= '9') {
		label = "Kb" + label
	}
	return label
}
