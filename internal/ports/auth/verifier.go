package auth

import "context"

// AuthVerifier traduce un bearer token en claims. Implementaciones: jwtauth (HS256 local) y odin (IAM remoto).
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc adapta una función a AuthVerifier.
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}
