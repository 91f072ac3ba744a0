package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// Prefixo das api keys de agente; a key completa só aparece no registro
const keyPrefix = "aico_sk_"

// NewAPIKey gera uma credencial opaca de agente: aico_sk_ + 64 hex chars
func NewAPIKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return keyPrefix + hex.EncodeToString(b)
}

type ctxKey struct{}

// AgentID do agente autenticado, injetado pelo middleware HTTP
func AgentID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}

// WithAgentID grava o id do agente autenticado no contexto da request
func WithAgentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}
