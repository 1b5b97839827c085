package gateway

import "context"

type tokenKey struct{}

// WithToken stores a bearer token in the context for ContextToken to pick
// up on outgoing upstream calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// ContextToken is a TokenFunc sourcing the bearer token from the request
// context, where the BFF middleware stashed the caller's own token.
func ContextToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	return ""
}
