package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// Signer handles Bitget V2 API Authentication.
// It stores keys as []byte to allow memory wiping.
type Signer struct {
	accessKey  []byte
	secretKey  []byte
	passphrase []byte
}

// NewSigner creates a new signer.
// It converts string inputs to []byte for internal safety.
func NewSigner(accessKey, secretKey, passphrase string) *Signer {
	return &Signer{
		accessKey:  []byte(accessKey),
		secretKey:  []byte(secretKey),
		passphrase: []byte(passphrase),
	}
}

// HasCredentials reports whether all three key parts are present.
func (s *Signer) HasCredentials() bool {
	return len(s.accessKey) > 0 && len(s.secretKey) > 0 && len(s.passphrase) > 0
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	s.wipeSlice(s.accessKey)
	s.wipeSlice(s.secretKey)
	s.wipeSlice(s.passphrase)
}

func (s *Signer) wipeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateHeaders creates the required headers for one request.
// Pre-signature string per Bitget docs:
// timestamp + method + requestPath [+ "?" + queryString] + body.
// Signature, key, and timestamp travel as headers only, never in the body.
func (s *Signer) GenerateHeaders(method, path, query, body string) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

	payload := timestamp + method + path
	if query != "" {
		payload += "?" + query
	}
	payload += body
	signature := s.computeHmacSha256(payload)

	return map[string]string{
		"ACCESS-KEY":        string(s.accessKey),
		"ACCESS-SIGN":       signature,
		"ACCESS-TIMESTAMP":  timestamp,
		"ACCESS-PASSPHRASE": string(s.passphrase),
		"Content-Type":      "application/json",
		"locale":            "en-US",
	}
}

func (s *Signer) computeHmacSha256(payload string) string {
	// SecretKey is already []byte, perfect for HMAC
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
