package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNodeLabel(t *testing.T) {
	tests := []struct {
		name string
		kbID string
		want string
	}{
		{"plain identifier", "mykb", "mykb"},
		{"hyphenated identifier", "kb-42", "kb_42"},
		{"uuid identifier", "3f2b1c9a-8d7e-4f60-a1b2-c3d4e5f60718", "Kb3f2b1c9a_8d7e_4f60_a1b2_c3d4e5f60718"},
		{"leading digit", "42kb", "Kb42kb"},
		{"empty identifier", "", "Kb"},
		{"unicode characters", "知识库1", "___1"},
		{"underscores preserved", "my_kb_2", "my_kb_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveNodeLabel(tt.kbID))
		})
	}
}

func TestDeriveNodeLabel_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, DeriveNodeLabel("kb-42"), DeriveNodeLabel("kb-42"))
	}
}

func TestDeriveNodeLabel_SafeForCypher(t *testing.T) {
	label := DeriveNodeLabel("weird id!@#$%^&*()")
	for _, r := range label {
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		assert.True(t, safe, "unsafe rune %q in label %q", r, label)
	}
	assert.False(t, label[0] >= '0' && label[0] <= '9')
}
