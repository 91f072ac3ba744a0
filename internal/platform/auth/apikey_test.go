package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIKey_Format(t *testing.T) {
	k := NewAPIKey()
	assert.True(t, strings.HasPrefix(k, "aico_sk_"))
	assert.Len(t, k, len("aico_sk_")+64)
}

func TestNewAPIKey_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		k := NewAPIKey()
		assert.False(t, seen[k])
		seen[k] = true
	}
}

func TestAgentIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := AgentID(ctx)
	assert.False(t, ok)

	ctx = WithAgentID(ctx, "agent-1")
	id, ok := AgentID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "agent-1", id)
}
