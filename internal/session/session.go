// Package session is the boundary to the external authentication provider.
// The server never authenticates anyone itself; it only turns an opaque
// token into an opaque user id.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/elderquery/elderquery/internal/domain"
)

// Provider verifies a session token and returns the user id it stands for.
type Provider interface {
	Verify(ctx context.Context, token string) (string, error)
}

// HMACProvider derives a stable opaque user id from the presented token.
// Good enough for a single-user local deployment; any real verifier can be
// plugged in behind the same interface.
type HMACProvider struct {
	secret []byte
}

func NewHMACProvider(secret string) *HMACProvider {
	return &HMACProvider{secret: []byte(secret)}
}

func (p *HMACProvider) Verify(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrInvalidToken
	}
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(token))
	return "user_" + hex.EncodeToString(mac.Sum(nil))[:32], nil
}
