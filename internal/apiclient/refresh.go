package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
	"github.com/O-G-W-A-L/doit-cli/internal/session"
)

// refreshTimeout bounds the dedicated token-refresh call so a hung refresh
// endpoint cannot leave retried requests waiting indefinitely.
const refreshTimeout = 30 * time.Second

var errNoRefreshToken = errors.New("no refresh token available")

// attempt is an immutable snapshot of an outbound call: enough to replay it
// once, plus the one-shot marker that bounds every original request to a
// single refresh cycle. Marking returns a new value instead of mutating a
// shared request object.
type attempt struct {
	req     *http.Request
	body    []byte
	retried bool
}

// newAttempt snapshots the request body so the call can be replayed
// faithfully: same method, path and bytes, differing only in the
// Authorization header the auth transport attaches.
func newAttempt(req *http.Request) (*attempt, error) {
	a := &attempt{req: req}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("snapshotting request body: %w", err)
		}
		a.body = body
	}
	return a, nil
}

// markRetried returns a copy of the attempt with the one-shot marker set.
func (a *attempt) markRetried() *attempt {
	return &attempt{req: a.req, body: a.body, retried: true}
}

// request builds a fresh, sendable clone of the snapshot.
func (a *attempt) request() *http.Request {
	clone := a.req.Clone(a.req.Context())
	if a.body != nil {
		body := a.body
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return clone
}

// refreshTransport is the response interceptor: it watches for 401s, runs
// at most one token refresh per original request, replays the request with
// the new token, and terminates the session when recovery is impossible.
//
// Concurrent 401s within one scope are deduplicated: they all wait on a
// single refresh call and share its result.
type refreshTransport struct {
	next        http.RoundTripper // auth transport; re-reads the store on replay
	store       credstore.Store
	broadcaster *session.Broadcaster
	refreshURL  string

	// Dedicated client for the refresh call itself. Deliberately not built on
	// next: the refresh request must never be intercepted or carry a bearer
	// token, or a rejected refresh would recurse.
	client *http.Client

	group singleflight.Group
}

// Compile-time check that refreshTransport implements http.RoundTripper.
var _ http.RoundTripper = (*refreshTransport)(nil)

func newRefreshTransport(next http.RoundTripper, store credstore.Store, broadcaster *session.Broadcaster, refreshURL string, base http.RoundTripper) *refreshTransport {
	return &refreshTransport{
		next:        next,
		store:       store,
		broadcaster: broadcaster,
		refreshURL:  refreshURL,
		client: &http.Client{
			Timeout:   refreshTimeout,
			Transport: base,
		},
	}
}

// RoundTrip drives the recovery state machine. Responses other than 401 are
// returned to the caller unchanged, including a non-auth failure after a
// replay; the coordinator never swallows a second failure.
func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	a, err := newAttempt(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.next.RoundTrip(a.request())
	for {
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			return resp, err
		}

		// Marker already set: never refresh twice for the same original request.
		if a.retried {
			return t.terminate(req, resp)
		}

		// Flip the marker before the refresh call, not after, so a failure
		// mid-refresh can never re-enter.
		a = a.markRetried()

		if refreshErr := t.refresh(req); refreshErr != nil {
			slog.DebugContext(req.Context(), "token refresh failed",
				"method", req.Method, "path", req.URL.Path, "error", refreshErr)
			return t.terminate(req, resp)
		}

		drain(resp)
		resp, err = t.next.RoundTrip(a.request())
	}
}

// refresh mints a new access token for the store's scope. Concurrent callers
// in the same scope share one in-flight refresh call and its outcome.
func (t *refreshTransport) refresh(req *http.Request) error {
	_, err, _ := t.group.Do(t.store.Scope(), func() (any, error) {
		return nil, t.doRefresh(req)
	})
	return err
}

// doRefresh performs the actual token-refresh exchange:
// POST {refresh} → {access, refresh?}. Any other response shape is a failure.
// On success the rotated tokens are written back to the store; the replay
// picks them up through the auth transport.
func (t *refreshTransport) doRefresh(original *http.Request) error {
	ctx := original.Context()

	refreshToken, err := t.store.Get(ctx, credstore.KindRefresh)
	if errors.Is(err, credstore.ErrNotFound) {
		return errNoRefreshToken
	}
	if err != nil {
		return fmt.Errorf("reading refresh token: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh call: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("decoding refresh response: %w", err)
	}
	if tokens.Access == "" {
		return errors.New("refresh response missing access token")
	}

	if err := t.store.Set(ctx, credstore.KindAccess, tokens.Access); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	if tokens.Refresh != "" {
		if err := t.store.Set(ctx, credstore.KindRefresh, tokens.Refresh); err != nil {
			return fmt.Errorf("storing rotated refresh token: %w", err)
		}
	}

	slog.DebugContext(ctx, "access token refreshed", "scope", t.store.Scope())
	return nil
}

// terminate handles the unrecoverable auth failure. Enrollment-class requests
// get a contextual error back so the caller can prompt inline instead of the
// user being evicted mid-flow; everything else ends the session.
func (t *refreshTransport) terminate(req *http.Request, resp *http.Response) (*http.Response, error) {
	drain(resp)

	if isEnrollment(req) {
		return nil, &ClassifiedError{
			Kind:       KindAuth,
			StatusCode: http.StatusUnauthorized,
			Contextual: true,
			Message:    "Authentication required. Please log in to enroll in courses.",
		}
	}

	if err := t.broadcaster.Terminate(req.Context()); err != nil {
		slog.ErrorContext(req.Context(), "session termination failed", "error", err)
	}

	return nil, &ClassifiedError{
		Kind:       KindAuth,
		StatusCode: http.StatusUnauthorized,
		Message:    "Session expired. Please log in again.",
	}
}

// isEnrollment reports whether the request belongs to the enrollment action
// class, the one named exception to termination-on-auth-failure.
func isEnrollment(req *http.Request) bool {
	return strings.Contains(req.URL.Path, "/enroll/")
}

// drain discards and closes a response body so the underlying connection can
// be reused.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
