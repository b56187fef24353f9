package apiclient

import (
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/O-G-W-A-L/doit-cli/internal/session"
)

// authTransport attaches the current access token to every outgoing request
// before transmission. Anonymous sessions (no stored token) pass through
// unauthenticated. No retry, no error handling beyond token lookup.
type authTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

// Compile-time check that authTransport implements http.RoundTripper.
var _ http.RoundTripper = (*authTransport)(nil)

// RoundTrip clones the request and sets the Authorization header if an access
// token exists. Per the RoundTripper contract the original request is never
// mutated.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if errors.Is(err, session.ErrNoSession) {
		return t.base.RoundTrip(req)
	}
	if err != nil {
		// A local credential fault, not a network failure.
		return nil, &ClassifiedError{Kind: KindUnknown, Message: err.Error()}
	}

	authed := req.Clone(req.Context())
	token.SetAuthHeader(authed)
	return t.base.RoundTrip(authed)
}
