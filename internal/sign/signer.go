// Package sign implements the §4.A request-signing scheme: RSA-PSS/SHA-256
// over timestamp||METHOD||path, salt length equal to the digest length,
// base64-encoded. No repository example performs PSS signing, so this
// package is built directly on the standard library's crypto/rsa — there is
// no ecosystem signing library in the retrieval pack to defer to here.
package sign

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
	"time"
)

// Signer holds a parsed RSA private key and produces the three headers an
// authenticated request must carry.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewFromPEMFile loads a PKCS#8 or PKCS#1 PEM-encoded RSA private key from
// disk.
func NewFromPEMFile(keyID, path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sign: read private key file: %w", err)
	}
	return NewFromPEM(keyID, data)
}

// NewFromPEM parses a PEM-encoded RSA private key from bytes.
func NewFromPEM(keyID string, pemBytes []byte) (*Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("sign: no PEM block found in private key")
	}
	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &Signer{keyID: keyID, key: key}, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("sign: parse private key (tried PKCS1 and PKCS8): %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("sign: private key is not RSA")
	}
	return rsaKey, nil
}

// Headers is the set of three headers an authenticated request attaches.
type Headers struct {
	KeyID     string
	Timestamp string // milliseconds since epoch, as a decimal string
	Signature string // base64-encoded RSA-PSS/SHA-256 signature
}

// Sign computes the headers for one request. path must already exclude the
// query string — callers are responsible for stripping it before calling.
func (s *Signer) Sign(method, path string, now time.Time) (Headers, error) {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	message := ts + method + path

	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return Headers{}, fmt.Errorf("sign: RSA-PSS sign: %w", err)
	}

	return Headers{
		KeyID:     s.keyID,
		Timestamp: ts,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}
