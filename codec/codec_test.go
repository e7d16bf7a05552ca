package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/oriolbns/despesa/crypto"
)

func TestPrepareParse(t *testing.T) {
	key := crypto.DeriveKey("correct-horse-battery")
	doc := map[string]any{"categories": []any{"Food"}, "n": float64(3)}

	t.Run("EncryptedRoundTrip", func(t *testing.T) {
		text, err := Prepare(doc, key)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
			t.Fatal("encrypted content must not look like JSON")
		}

		var got map[string]any
		if err := Parse(text, key, &got); err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if got["n"] != float64(3) {
			t.Errorf("expected n=3, got %v", got["n"])
		}
	})

	t.Run("PlaintextRoundTrip", func(t *testing.T) {
		text, err := Prepare(doc, nil)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if !strings.HasPrefix(text, "{") {
			t.Fatal("plaintext mode should produce raw JSON")
		}

		var got map[string]any
		if err := Parse(text, nil, &got); err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
	})

	t.Run("PlaintextNeverDecrypted", func(t *testing.T) {
		// A JSON-looking document parses as-is even when a key is
		// configured; decryption must not be attempted.
		var got []map[string]any
		if err := Parse(`[{"a":1}]`, key, &got); err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(got) != 1 || got[0]["a"] != float64(1) {
			t.Errorf("unexpected parse result: %v", got)
		}
	})

	t.Run("LeadingWhitespace", func(t *testing.T) {
		var got map[string]any
		if err := Parse("\n  {\"a\":1}\n", key, &got); err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
	})

	t.Run("WrappedBase64", func(t *testing.T) {
		text, err := Prepare(doc, key)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		// Remote stores wrap base64 at 60 columns.
		var wrapped strings.Builder
		for i, r := range text {
			if i > 0 && i%60 == 0 {
				wrapped.WriteByte('\n')
			}
			wrapped.WriteRune(r)
		}
		var got map[string]any
		if err := Parse(wrapped.String(), key, &got); err != nil {
			t.Fatalf("Parse of wrapped content failed: %v", err)
		}
	})

	t.Run("GarbageIsFormatError", func(t *testing.T) {
		var got any
		err := Parse("!!not-json-not-base64!!", key, &got)
		if !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("WrongSecretIsFormatError", func(t *testing.T) {
		text, err := Prepare(doc, key)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		var got any
		err = Parse(text, crypto.DeriveKey("some-other-secret"), &got)
		if !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("EncryptedWithoutSecret", func(t *testing.T) {
		text, err := Prepare(doc, key)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		var got any
		err = Parse(text, nil, &got)
		if !errors.Is(err, ErrSecretRequired) {
			t.Errorf("expected ErrSecretRequired, got %v", err)
		}
	})

	t.Run("EmptyContent", func(t *testing.T) {
		var got any
		if err := Parse("   ", key, &got); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})
}
