package auth

import "context"

type contextKey string

const credentialContextKey contextKey = "relay_credential"

func ContextWithCredential(ctx context.Context, cred *Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey, cred)
}

func CredentialFromContext(ctx context.Context) (*Credential, bool) {
	cred, ok := ctx.Value(credentialContextKey).(*Credential)
	return cred, ok
}
