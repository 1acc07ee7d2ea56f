package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifier_TokenFor(t *testing.T) {
	verifier := NewVerifier("shared-secret")

	token := verifier.TokenFor("donation-1-abcd1234")

	// Deterministic per (secret, reference).
	assert.Equal(t, token, verifier.TokenFor("donation-1-abcd1234"))
	assert.NotEqual(t, token, verifier.TokenFor("donation-2-ffff0000"))
	assert.NotEqual(t, token, NewVerifier("other-secret").TokenFor("donation-1-abcd1234"))
	assert.Len(t, token, 64)
}

func TestVerifier_VerifyAuthorization(t *testing.T) {
	verifier := NewVerifier("shared-secret")
	reference := "donation-1-abcd1234"
	token := verifier.TokenFor(reference)

	assert.True(t, verifier.VerifyAuthorization(token, reference))
	assert.False(t, verifier.VerifyAuthorization(token, "donation-2-ffff0000"))
	assert.False(t, verifier.VerifyAuthorization("forged", reference))
	assert.False(t, verifier.VerifyAuthorization("", reference))
}

func TestVerifier_Disabled(t *testing.T) {
	verifier := NewVerifier("")

	assert.False(t, verifier.Enabled())
	assert.Empty(t, verifier.TokenFor("donation-1-abcd1234"))
	// Without a secret there is nothing to check against.
	assert.True(t, verifier.VerifyAuthorization("anything", "donation-1-abcd1234"))
}
