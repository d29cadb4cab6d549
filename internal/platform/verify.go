package platform

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Ed25519Verifier checks an inbound webhook's signature header against a
// bot's public key, the handshake/callback verification contract from
// spec.md §4.5.
type Ed25519Verifier struct {
	PublicKey   ed25519.PublicKey
	SignatureHeader string
}

// NewEd25519Verifier constructs a verifier for the given hex-encoded
// public key. signatureHeader names the header carrying the hex-encoded
// signature over the raw request body.
func NewEd25519Verifier(publicKeyHex, signatureHeader string) (*Ed25519Verifier, error) {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("platform: decode public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("platform: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	if signatureHeader == "" {
		signatureHeader = "X-Signature-Ed25519"
	}
	return &Ed25519Verifier{PublicKey: ed25519.PublicKey(key), SignatureHeader: signatureHeader}, nil
}

// Verify implements WebhookVerifier.
func (v *Ed25519Verifier) Verify(headers map[string][]string, body []byte) error {
	sigValues, ok := headers[v.SignatureHeader]
	if !ok || len(sigValues) == 0 || sigValues[0] == "" {
		return fmt.Errorf("platform: missing signature header %q", v.SignatureHeader)
	}
	sig, err := hex.DecodeString(sigValues[0])
	if err != nil {
		return fmt.Errorf("platform: decode signature: %w", err)
	}
	if !ed25519.Verify(v.PublicKey, body, sig) {
		return fmt.Errorf("platform: signature verification failed")
	}
	return nil
}
