package push

import (
	"encoding/base64"
	"testing"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestServiceEnabled(t *testing.T) {
	if NewService("", "", "mailto:x@example.com").Enabled() {
		t.Error("expected disabled service without keys")
	}
	svc := NewService("pub", "priv", "mailto:x@example.com")
	if !svc.Enabled() {
		t.Error("expected enabled service with keys")
	}
	if svc.VAPIDPublicKey() != "pub" {
		t.Errorf("public key = %q, want pub", svc.VAPIDPublicKey())
	}
}
