package alidns

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is mandated by the API
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitlab.bluewillows.net/root/aliddns/pkg/provider"
)

// Common request parameters.
const (
	APIVersion       = "2015-01-09"
	ResponseFormat   = "JSON"
	SignatureMethod  = "HMAC-SHA1"
	SignatureVersion = "1.0"

	// signatureParam is never part of the signed set.
	signatureParam = "Signature"

	timestampLayout = "2006-01-02T15:04:05Z"
)

// Signer computes request signatures.
type Signer struct {
	now   func() time.Time
	nonce func() string
}

// SignerOption is a functional option for configuring the Signer.
type SignerOption func(*Signer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNonce overrides the SignatureNonce source.
func WithNonce(nonce func() string) SignerOption {
	return func(s *Signer) {
		if nonce != nil {
			s.nonce = nonce
		}
	}
}

// NewSigner returns a Signer using the wall clock and random UUID nonces.
func NewSigner(opts ...SignerOption) *Signer {
	s := &Signer{
		now:   time.Now,
		nonce: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign merges the common parameters into params and signs the result.
//
// Caller keys win over common parameters of the same name and a caller
// "Signature" key is dropped. The returned map is the exact parameter set
// covered by the signature; params is not modified.
func (s *Signer) Sign(method, accessKeyID, secret string, params map[string]string) (string, map[string]string, error) {
	if accessKeyID == "" {
		return "", nil, provider.ErrConfigMissing("access_key_id")
	}
	if secret == "" {
		return "", nil, provider.ErrConfigMissing("access_key_secret")
	}

	merged := map[string]string{
		"Format":           ResponseFormat,
		"Version":          APIVersion,
		"AccessKeyId":      accessKeyID,
		"SignatureMethod":  SignatureMethod,
		"SignatureVersion": SignatureVersion,
		"Timestamp":        s.now().UTC().Format(timestampLayout),
		"SignatureNonce":   s.nonce(),
	}
	for k, v := range params {
		if k == signatureParam {
			continue
		}
		merged[k] = v
	}

	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write([]byte(StringToSign(method, CanonicalQuery(merged))))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), merged, nil
}

// CanonicalQuery encodes params as key=value pairs sorted by key.
func CanonicalQuery(params map[string]string) string {
	keys := sortedKeys(params)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(PercentEncode(k))
		b.WriteByte('=')
		b.WriteString(PercentEncode(params[k]))
	}
	return b.String()
}

// StringToSign builds the signed string from a canonical query.
func StringToSign(method, canonicalQuery string) string {
	encoded := PercentEncode(canonicalQuery)
	encoded = strings.ReplaceAll(encoded, "%2E", ".")
	encoded = strings.ReplaceAll(encoded, "%2D", "-")
	encoded = strings.ReplaceAll(encoded, "%20", "+")
	encoded = strings.ReplaceAll(encoded, "~", "%7E")

	return method + "&%2F&" + encoded
}

// PercentEncode escapes everything outside A-Z a-z 0-9 and "-_.~".
func PercentEncode(s string) string {
	// QueryEscape already leaves exactly the unreserved set alone, except
	// that it turns spaces into "+".
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
