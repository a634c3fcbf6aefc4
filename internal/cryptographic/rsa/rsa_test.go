package rsa

import (
	"bytes"
	"testing"
)

func TestPEMRoundTrip(t *testing.T) {
	priv, err := NewKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	pubPEM, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("encode public: %v", err)
	}
	pub, err := DecodePublicKey(pubPEM)
	if err != nil {
		t.Fatalf("decode public: %v", err)
	}
	if !pub.Equal(&priv.PublicKey) {
		t.Fatalf("public key mismatch after PEM round trip")
	}

	privPEM, err := EncodePrivateKey(priv)
	if err != nil {
		t.Fatalf("encode private: %v", err)
	}
	back, err := DecodePrivateKey(privPEM)
	if err != nil {
		t.Fatalf("decode private: %v", err)
	}
	if !back.Equal(priv) {
		t.Fatalf("private key mismatch after PEM round trip")
	}

	if _, err := DecodePublicKey("garbage"); err == nil {
		t.Fatalf("expected error for non-PEM input")
	}
	if _, err := DecodePublicKey(privPEM); err == nil {
		t.Fatalf("expected error decoding private PEM as public key")
	}
}

func TestOAEPRoundTrip(t *testing.T) {
	priv, err := NewKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	ct, err := Encrypt(&priv.PublicKey, []byte("symmetric key"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := Decrypt(priv, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, []byte("symmetric key")) {
		t.Fatalf("got %q", pt)
	}
}
