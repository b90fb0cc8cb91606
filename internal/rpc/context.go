package rpc

import "context"

type credentialKey struct{}

// WithCredential stashes the caller's bearer credential on the context so
// outbound calls made on their behalf carry it to the next service.
func WithCredential(ctx context.Context, credential string) context.Context {
	if credential == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, credential)
}

// CredentialFromContext returns the stashed credential, if any.
func CredentialFromContext(ctx context.Context) string {
	credential, _ := ctx.Value(credentialKey{}).(string)
	return credential
}
