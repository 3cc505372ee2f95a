// Package signer produces time-limited, tamper-evident URLs for uploaded
// screenshot artifacts.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer mints a signed URL for a storage key.
type Signer interface {
	Sign(storageKey string, width, height int, format string) (string, error)
}

// HMACSigner signs query parameters with HMAC-SHA256 over a shared secret.
type HMACSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewHMACSigner creates a Signer that appends an expiring signature to URLs
// rooted at baseURL (e.g. a CDN or object-store public endpoint).
func NewHMACSigner(secret []byte, baseURL string, ttl time.Duration) *HMACSigner {
	return &HMACSigner{secret: secret, baseURL: baseURL, ttl: ttl, now: time.Now}
}

func (s *HMACSigner) Sign(storageKey string, width, height int, format string) (string, error) {
	expires := s.now().Add(s.ttl).Unix()
	payload := fmt.Sprintf("%s|%d|%d|%s|%d", storageKey, width, height, format, expires)
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse signer base url: %w", err)
	}
	u.Path = joinPath(u.Path, storageKey)

	q := u.Query()
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify reports whether sig is a valid, unexpired signature for the given
// parameters. Only the tests call it; cmd/screenshotd does not.
func (s *HMACSigner) Verify(storageKey string, width, height int, format string, expires int64, sig string) bool {
	if s.now().Unix() > expires {
		return false
	}
	payload := fmt.Sprintf("%s|%d|%d|%s|%d", storageKey, width, height, format, expires)
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

func joinPath(base, key string) string {
	if len(base) == 0 {
		return "/" + key
	}
	if base[len(base)-1] == '/' {
		return base + key
	}
	return base + "/" + key
}
