package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/storesync/backend/internal/domain/integration"
)

// HMACHeader carries the webhook body signature
const HMACHeader = "X-Shopify-Hmac-Sha256"

// HMACVerifier checks base64 HMAC-SHA256 signatures over raw webhook bodies
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for the shared webhook secret
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Sign computes the signature of body
func (v *HMACVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify returns integration.ErrInvalidSignature unless signature matches
// the exact bytes of body. An unconfigured secret rejects everything.
func (v *HMACVerifier) Verify(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if len(v.secret) == 0 || signature == "" {
		return integration.ErrInvalidSignature
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return integration.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return integration.ErrInvalidSignature
	}
	return nil
}

var _ integration.SignatureVerifier = (*HMACVerifier)(nil)
