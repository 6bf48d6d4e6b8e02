package access

import (
	"context"
	"testing"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalIDFromContext(ctx); ok {
		t.Fatal("empty context must not carry a principal")
	}
	ctx = ContextWithPrincipalID(ctx, "profile-1")
	id, ok := PrincipalIDFromContext(ctx)
	if !ok || id != "profile-1" {
		t.Fatalf("got %q, %v", id, ok)
	}
}

func TestTokenContextRoundTrip(t *testing.T) {
	ctx := ContextWithToken(context.Background(), "raw-token")
	tok, ok := TokenFromContext(ctx)
	if !ok || tok != "raw-token" {
		t.Fatalf("got %q, %v", tok, ok)
	}
}
