package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/wolfeidau/grandprix/internal/credentials"
	"github.com/wolfeidau/grandprix/internal/logger"
)

// TokenStore is the part of the credential store the HTTP layer needs.
type TokenStore interface {
	Token() string
	Clear() error
}

type skipInvalidationKey struct{}

// WithoutInvalidation marks a call whose 401 means bad input rather than an
// expired session, so it must not clear the stored credentials.
func WithoutInvalidation(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipInvalidationKey{}, true)
}

func skipInvalidation(ctx context.Context) bool {
	v, _ := ctx.Value(skipInvalidationKey{}).(bool)
	return v
}

var _ http.RoundTripper = (*AuthTransport)(nil)

// AuthTransport attaches the stored bearer token to every request. When an
// authenticated call comes back 401 the stored credentials are cleared and the
// registered handlers are notified.
type AuthTransport struct {
	tokens TokenStore
	next   http.RoundTripper

	mu       sync.RWMutex
	handlers []func()
}

// NewAuthTransport wraps next with bearer authentication.
func NewAuthTransport(tokens TokenStore, next http.RoundTripper) *AuthTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &AuthTransport{tokens: tokens, next: next}
}

// OnUnauthorized registers fn to be called after credentials were cleared
// because a backend rejected the token.
func (t *AuthTransport) OnUnauthorized(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, fn)
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := ""
	if t.tokens != nil {
		token = t.tokens.Token()
	}

	if token != "" {
		req = req.Clone(req.Context())
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusUnauthorized && token != "" && !skipInvalidation(req.Context()) {
		t.invalidate(req, token)
	}

	return resp, nil
}

func (t *AuthTransport) invalidate(req *http.Request, token string) {
	log.Warn().
		Str("path", req.URL.Path).
		Str("fingerprint", credentials.Fingerprint(token)).
		Msg("token rejected, clearing stored session")

	if err := t.tokens.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear stored session")
	}

	t.notify()
}

func (t *AuthTransport) notify() {
	t.mu.RLock()
	handlers := append([]func(){}, t.handlers...)
	t.mu.RUnlock()

	for _, fn := range handlers {
		fn()
	}
}

// requestIDTransport stamps each request with a time ordered id.
type requestIDTransport struct {
	next http.RoundTripper
}

func (t requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(logger.RequestIDHeader) == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Header.Set(logger.RequestIDHeader, id.String())
	}
	return t.next.RoundTrip(req)
}

// newBaseTransport builds the shared chain below authentication:
// request id, logging, tracing and compression.
func newBaseTransport(l zerolog.Logger, tracing bool) http.RoundTripper {
	var rt http.RoundTripper = gzhttp.Transport(http.DefaultTransport)
	if tracing {
		rt = otelhttp.NewTransport(rt)
	}
	rt = logger.NewRequestLogger(l, rt)
	return requestIDTransport{next: rt}
}
