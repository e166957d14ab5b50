package exchange

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Signer produces the three authentication headers the exchange requires
// on every request: the key id, a millisecond timestamp, and a base64
// RSA-PSS signature over "{timestamp}{METHOD}{path}". The path is signed
// without its query string.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewSigner parses a PEM-encoded RSA private key. Escaped newlines from
// environment variables are unescaped first.
func NewSigner(keyID, pemData string) (*Signer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("api key id is empty")
	}
	pemData = strings.ReplaceAll(pemData, `\n`, "\n")

	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}

	key, err := parseRSAKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{keyID: keyID, key: key}, nil
}

// NewSignerFromFile reads the PEM key from disk.
func NewSignerFromFile(keyID, path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}
	return NewSigner(keyID, string(data))
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want RSA", parsed)
	}
	return key, nil
}

// KeyID returns the configured API key id.
func (s *Signer) KeyID() string {
	return s.keyID
}

// Sign returns the base64 RSA-PSS (SHA-256, salt length equal to the
// digest length) signature over the canonical message.
func (s *Signer) Sign(timestampMs int64, method, path string) (string, error) {
	msg := strconv.FormatInt(timestampMs, 10) + strings.ToUpper(method) + path
	digest := sha256.Sum256([]byte(msg))

	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Headers returns the authentication header set for one request.
func (s *Signer) Headers(method, path string) (map[string]string, error) {
	ts := time.Now().UnixMilli()
	sig, err := s.Sign(ts, method, path)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.keyID,
		"KALSHI-ACCESS-TIMESTAMP": strconv.FormatInt(ts, 10),
		"KALSHI-ACCESS-SIGNATURE": sig,
	}, nil
}

// PublicKey exposes the key's public half for signature verification in
// tests.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}
