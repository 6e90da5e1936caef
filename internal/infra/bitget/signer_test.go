package bitget

import (
	"testing"
)

func TestSigner_GenerateSignature(t *testing.T) {
	// Standard HMAC Validation requires direct access to logic or predictable output.
	// Since GenerateHeaders relies on time.Now(), we verify the logic indirectly
	// or trusting the unit test of computeHmacSha256 below.

	// Test actual Signer struct
	signer := NewSigner("key", "secret", "pass")

	headers := signer.GenerateHeaders("POST", "/api/v2/order", "", "{\"symbol\":\"BTCUSDT\"}")

	if headers["ACCESS-KEY"] != "key" {
		t.Errorf("Expected ACCESS-KEY to be 'key', got %s", headers["ACCESS-KEY"])
	}
	if headers["ACCESS-PASSPHRASE"] != "pass" {
		t.Errorf("Expected ACCESS-PASSPHRASE to be 'pass', got %s", headers["ACCESS-PASSPHRASE"])
	}
	if headers["ACCESS-SIGN"] == "" {
		t.Error("ACCESS-SIGN should not be empty")
	}
	if len(headers["ACCESS-TIMESTAMP"]) != 13 { // Milliseconds
		t.Errorf("Expected timestamp len 13, got %s", headers["ACCESS-TIMESTAMP"])
	}
}

func TestSigner_QueryChangesSignature(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")

	plain := signer.GenerateHeaders("GET", "/api/v2/mix/position/single-position", "", "")
	withQuery := signer.GenerateHeaders("GET", "/api/v2/mix/position/single-position", "symbol=BTCUSDT", "")

	// Same timestamp granularity makes collisions possible in theory, but the
	// query must participate in the pre-signature string either way.
	if plain["ACCESS-SIGN"] == withQuery["ACCESS-SIGN"] && plain["ACCESS-TIMESTAMP"] == withQuery["ACCESS-TIMESTAMP"] {
		t.Error("query string did not affect the signature")
	}
}

func TestSigner_HasCredentials(t *testing.T) {
	tests := []struct {
		name             string
		key, secret, pwd string
		want             bool
	}{
		{"all present", "k", "s", "p", true},
		{"missing key", "", "s", "p", false},
		{"missing secret", "k", "", "p", false},
		{"missing passphrase", "k", "s", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSigner(tt.key, tt.secret, tt.pwd).HasCredentials(); got != tt.want {
				t.Errorf("HasCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeHmacSha256(t *testing.T) {
	// Standard HMAC-SHA256 Test Vector
	key := "key"
	data := "The quick brown fox jumps over the lazy dog"
	// Expected Base64: 97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg=

	expected := "97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg="

	// Create a signer initialized with the test key
	signer := NewSigner("dummy_access", key, "dummy_pass")

	// Call the private method (allowed since we are in package bitget)
	result := signer.computeHmacSha256(data)

	if result != expected {
		t.Errorf("HMAC Mismatch. Expected %s, got %s", expected, result)
	}
}
