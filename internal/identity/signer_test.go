package identity

import "testing"

func TestSign_Deterministic(t *testing.T) {
	s := NewSigner("validator-key", []byte("secret"))

	a := s.Sign([]byte("payload"))
	b := s.Sign([]byte("payload"))

	if a != b {
		t.Errorf("signatures differ for identical payloads: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars for HMAC-SHA256, got %d", len(a))
	}
}

func TestSign_DependsOnPayload(t *testing.T) {
	s := NewSigner("validator-key", []byte("secret"))

	if s.Sign([]byte("a")) == s.Sign([]byte("b")) {
		t.Error("different payloads must not collide")
	}
}

func TestSign_DependsOnSecret(t *testing.T) {
	a := NewSigner("k", []byte("secret-a")).Sign([]byte("payload"))
	b := NewSigner("k", []byte("secret-b")).Sign([]byte("payload"))

	if a == b {
		t.Error("different secrets must produce different signatures")
	}
}
