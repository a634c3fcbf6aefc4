package hybrid

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	large := make([]byte, 64*1024)
	if _, err := rand.Read(large); err != nil {
		t.Fatalf("rand: %v", err)
	}
	for _, p := range [][]byte{nil, []byte("hi"), large} {
		sealed, err := Seal(p, pub)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		got, err := Open(sealed, priv)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("round trip mismatch for %d bytes", len(p))
		}
	}
}

func TestSealUsesFreshKeyAndNonce(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	a, _ := Seal([]byte("same"), pub)
	b, _ := Seal([]byte("same"), pub)
	if bytes.Equal(a.Nonce, b.Nonce) || bytes.Equal(a.SealedKey, b.SealedKey) {
		t.Fatalf("expected fresh key material per call")
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	_, pub, _ := GenerateKeyPair()
	other, _, _ := GenerateKeyPair()

	sealed, err := Seal([]byte("secret"), pub)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(sealed, other); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestOpenRejectsCorruption(t *testing.T) {
	priv, pub, _ := GenerateKeyPair()
	sealed, _ := Seal([]byte("secret"), pub)

	tampered := sealed
	tampered.Ciphertext = append([]byte(nil), sealed.Ciphertext...)
	tampered.Ciphertext[0] ^= 1
	if _, err := Open(tampered, priv); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption for tampered ciphertext, got %v", err)
	}

	short := sealed
	short.Nonce = sealed.Nonce[:3]
	if _, err := Open(short, priv); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption for short nonce, got %v", err)
	}
}

func TestWireFormIsHex(t *testing.T) {
	priv, pub, _ := GenerateKeyPair()
	data, err := SealBytes([]byte(`{"code":700}`), pub)
	if err != nil {
		t.Fatalf("seal bytes: %v", err)
	}
	for _, field := range []string{`"ciphertext":"`, `"sealed_key":"`, `"nonce":"`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("missing %s in %s", field, data)
		}
	}
	if bytes.Contains(data, []byte("::END::")) {
		t.Fatalf("wire form must not contain the frame terminator")
	}

	got, err := OpenBytes(data, priv)
	if err != nil {
		t.Fatalf("open bytes: %v", err)
	}
	if string(got) != `{"code":700}` {
		t.Fatalf("got %s", got)
	}

	if _, err := OpenBytes([]byte(`{"ciphertext":"zz"}`), priv); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption for bad hex, got %v", err)
	}
	if _, err := OpenBytes([]byte(`{"code":700}`), priv); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption for plaintext frame, got %v", err)
	}
}
