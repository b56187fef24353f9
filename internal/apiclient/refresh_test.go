package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
	"github.com/O-G-W-A-L/doit-cli/internal/session"
)

// recordedRequest captures what the server saw, for replay-fidelity checks.
type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

// fakeNavigator records navigation side effects.
type fakeNavigator struct {
	mu      sync.Mutex
	atLogin bool
	visits  int
}

func (f *fakeNavigator) AtLogin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atLogin
}

func (f *fakeNavigator) ToLogin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits++
}

func (f *fakeNavigator) Visits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visits
}

// testHarness wires a client against a server with a controllable token state.
type testHarness struct {
	store       *credstore.MemoryStore
	broadcaster *session.Broadcaster
	navigator   *fakeNavigator
	client      *Client
	logouts     atomic.Int64

	refreshCalls atomic.Int64
	requests     struct {
		mu   sync.Mutex
		seen []recordedRequest
	}
}

func (h *testHarness) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.requests.mu.Lock()
	defer h.requests.mu.Unlock()
	h.requests.seen = append(h.requests.seen, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
}

func (h *testHarness) seen() []recordedRequest {
	h.requests.mu.Lock()
	defer h.requests.mu.Unlock()
	return append([]recordedRequest(nil), h.requests.seen...)
}

// harnessConfig describes the fake backend's token state.
type harnessConfig struct {
	accept        string // the only bearer token resource endpoints accept
	minted        string // access token the refresh endpoint mints
	refreshToken  string // refresh token seeded into the store ("" = none)
	rotated       string // rotated refresh token in the refresh response ("" = no rotation)
	refreshStatus int    // 0 means 200
}

// newHarness starts a fake backend and a client wired against it.
func newHarness(t *testing.T, cfg harnessConfig) *testHarness {
	t.Helper()

	if cfg.refreshStatus == 0 {
		cfg.refreshStatus = http.StatusOK
	}

	h := &testHarness{
		store:     credstore.NewMemoryStore(""),
		navigator: &fakeNavigator{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		h.refreshCalls.Add(1)
		h.record(r)
		// Slow enough that concurrent 401s all join the in-flight refresh.
		time.Sleep(25 * time.Millisecond)
		if cfg.refreshStatus != http.StatusOK {
			w.WriteHeader(cfg.refreshStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"access": cfg.minted}
		if cfg.rotated != "" {
			response["refresh"] = cfg.rotated
		}
		_ = json.NewEncoder(w).Encode(response)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		h.record(r)
		if r.Header.Get("Authorization") != "Bearer "+cfg.accept {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Given token not valid for any token type"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	broadcaster, err := session.NewBroadcaster(h.store, h.navigator)
	if err != nil {
		t.Fatalf("NewBroadcaster: %v", err)
	}
	broadcaster.Subscribe(func() { h.logouts.Add(1) })
	h.broadcaster = broadcaster

	client, err := New(server.URL, h.store, broadcaster)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.client = client

	if cfg.refreshToken != "" {
		if err := h.store.Set(context.Background(), credstore.KindRefresh, cfg.refreshToken); err != nil {
			t.Fatalf("seeding refresh token: %v", err)
		}
	}
	return h
}

func TestRefreshRecoversExpiredToken(t *testing.T) {
	h := newHarness(t, harnessConfig{accept: "T2", minted: "T2", refreshToken: "R1", rotated: "R2"})
	if err := h.store.Set(context.Background(), credstore.KindAccess, "T1"); err != nil {
		t.Fatal(err)
	}

	result, err := Get[map[string]bool](context.Background(), h.client, "/api/courses/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !result["ok"] {
		t.Fatalf("unexpected payload: %v", result)
	}

	if got := h.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if got := h.logouts.Load(); got != 0 {
		t.Errorf("logout signals = %d, want 0", got)
	}

	seen := h.seen()
	if len(seen) != 3 {
		t.Fatalf("requests seen = %d, want 3 (original, refresh, retry)", len(seen))
	}
	if seen[0].Auth != "Bearer T1" {
		t.Errorf("original auth = %q, want Bearer T1", seen[0].Auth)
	}
	if want := `{"refresh":"R1"}`; seen[1].Body != want {
		t.Errorf("refresh body = %q, want %q", seen[1].Body, want)
	}
	if seen[2].Auth != "Bearer T2" {
		t.Errorf("retry auth = %q, want Bearer T2", seen[2].Auth)
	}

	// Rotated refresh token persisted under the same scope.
	rotated, err := h.store.Get(context.Background(), credstore.KindRefresh)
	if err != nil || rotated != "R2" {
		t.Errorf("stored refresh token = %q, %v; want R2", rotated, err)
	}
}

func TestRetryReplaysRequestFaithfully(t *testing.T) {
	h := newHarness(t, harnessConfig{accept: "T2", minted: "T2", refreshToken: "R1"})
	if err := h.store.Set(context.Background(), credstore.KindAccess, "T1"); err != nil {
		t.Fatal(err)
	}

	body := map[string]string{"title": "Intro to Go"}
	if _, err := Post[map[string]bool](context.Background(), h.client, "/api/courses/courses/", body); err != nil {
		t.Fatalf("Post: %v", err)
	}

	seen := h.seen()
	if len(seen) != 3 {
		t.Fatalf("requests seen = %d, want 3", len(seen))
	}
	original, retry := seen[0], seen[2]
	if original.Method != retry.Method || original.Path != retry.Path || original.Body != retry.Body {
		t.Errorf("retry differs from original:\noriginal: %+v\nretry:    %+v", original, retry)
	}
	if original.Auth == retry.Auth {
		t.Errorf("retry should differ only in Authorization, both were %q", original.Auth)
	}
}

func TestAtMostOneRefreshPerRequest(t *testing.T) {
	// Refresh succeeds, but the new token is still rejected: the retried 401
	// must terminate instead of refreshing again.
	h := newHarness(t, harnessConfig{accept: "T2", minted: "T3", refreshToken: "R1"})
	if err := h.store.Set(context.Background(), credstore.KindAccess, "T1"); err != nil {
		t.Fatal(err)
	}

	_, err := Get[map[string]bool](context.Background(), h.client, "/api/courses/")
	classified := asClassified(t, err)
	if classified.Kind != KindAuth {
		t.Errorf("kind = %s, want auth", classified.Kind)
	}
	if classified.Contextual {
		t.Error("non-enrollment failure must not be contextual")
	}

	if got := h.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", got)
	}
	if got := h.logouts.Load(); got != 1 {
		t.Errorf("logout signals = %d, want 1", got)
	}
	if got := h.navigator.Visits(); got != 1 {
		t.Errorf("navigations = %d, want 1", got)
	}
}

func TestMissingRefreshTokenTerminates(t *testing.T) {
	h := newHarness(t, harnessConfig{accept: "T2", minted: "T2"})
	if err := h.store.Set(context.Background(), credstore.KindAccess, "T1"); err != nil {
		t.Fatal(err)
	}

	_, err := Get[map[string]bool](context.Background(), h.client, "/api/notifications/")
	classified := asClassified(t, err)
	if classified.Kind != KindAuth {
		t.Errorf("kind = %s, want auth", classified.Kind)
	}

	if got := h.refreshCalls.Load(); got != 0 {
		t.Errorf("refresh calls = %d, want 0 (no token to refresh with)", got)
	}
	if got := h.logouts.Load(); got != 1 {
		t.Errorf("logout signals = %d, want 1", got)
	}
	if got := h.navigator.Visits(); got != 1 {
		t.Errorf("navigations = %d, want 1", got)
	}

	// Store cleared by termination.
	if _, err := h.store.Get(context.Background(), credstore.KindAccess); err == nil {
		t.Error("access token should be cleared after termination")
	}
}

func TestRefreshFailureTerminates(t *testing.T) {
	h := newHarness(t, harnessConfig{accept: "T2", refreshToken: "R1", refreshStatus: http.StatusUnauthorized})
	if err := h.store.Set(context.Background(), credstore.KindAccess, "T1"); err != nil {
		t.Fatal(err)
	}

	_, err := Get[map[string]bool](context.Background(), h.client, "/api/courses/")
	classified := asClassified(t, err)
	if classified.Kind != KindAuth {
		t.Errorf("kind = %s, want auth", classified.Kind)
	}
	if got := h.logouts.Load(); got != 1 {
		t.Errorf("logout signals = %d, want 1", got)
	}
}

func TestEnrollmentAuthFailureIsContextual(t *testing.T) {
	h := newHarness(t, harnessConfig{accept: "T2", minted: "T2"})
	if err := h.store.Set(context.Background(), credstore.KindAccess, "T1"); err != nil {
		t.Fatal(err)
	}

	_, err := Post[map[string]bool](context.Background(), h.client, "/api/courses/5/enroll/", nil)
	classified := asClassified(t, err)
	if classified.Kind != KindAuth {
		t.Errorf("kind = %s, want auth", classified.Kind)
	}
	if !classified.Contextual {
		t.Error("enrollment auth failure must be contextual")
	}

	// The deliberate carve-out: no logout signal, no navigation.
	if got := h.logouts.Load(); got != 0 {
		t.Errorf("logout signals = %d, want 0", got)
	}
	if got := h.navigator.Visits(); got != 0 {
		t.Errorf("navigations = %d, want 0", got)
	}
}

func TestConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	// Policy pin: concurrent 401s within one scope are deduplicated into a
	// single refresh call (singleflight), not one refresh per request.
	h := newHarness(t, harnessConfig{accept: "T2", minted: "T2", refreshToken: "R1"})
	if err := h.store.Set(context.Background(), credstore.KindAccess, "T1"); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = Get[map[string]bool](context.Background(), h.client, fmt.Sprintf("/api/courses/%d/", i))
		}()
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if got := h.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1 shared flight", got)
	}
}

func TestNonAuthFailuresPassThroughUnrefreshed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail": "You do not have permission to perform this action."}`))
	}))
	t.Cleanup(server.Close)

	store := credstore.NewMemoryStore("")
	broadcaster, err := session.NewBroadcaster(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	client, err := New(server.URL, store, broadcaster)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Get[struct{}](context.Background(), client, "/api/payments/transactions/")
	classified := asClassified(t, err)
	if classified.Kind != KindPermission {
		t.Errorf("kind = %s, want permission", classified.Kind)
	}
	if classified.Message != "You do not have permission to perform this action." {
		t.Errorf("unexpected message %q", classified.Message)
	}
}

func TestAnonymousRequestSentWithoutAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("anonymous request carried Authorization %q", auth)
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	t.Cleanup(server.Close)

	store := credstore.NewMemoryStore("")
	broadcaster, err := session.NewBroadcaster(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	client, err := New(server.URL, store, broadcaster)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Get[map[string]bool](context.Background(), client, "/api/courses/"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestReadOnlyStoreTerminatesWithoutRecovery(t *testing.T) {
	// An env-backed session holds no refresh token and cannot be cleared, so
	// an expired token is unrecoverable: the caller gets a classified auth
	// failure, the logout signal still fires, and the variable keeps its value.
	t.Setenv("DOIT_TEST_ACCESS_TOKEN", "T1")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Given token not valid for any token type"}`))
	}))
	t.Cleanup(server.Close)

	store, err := credstore.NewEnvStore("DOIT_TEST_ACCESS_TOKEN")
	if err != nil {
		t.Fatalf("NewEnvStore: %v", err)
	}
	navigator := &fakeNavigator{}
	broadcaster, err := session.NewBroadcaster(store, navigator)
	if err != nil {
		t.Fatal(err)
	}
	logouts := 0
	broadcaster.Subscribe(func() { logouts++ })

	client, err := New(server.URL, store, broadcaster)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Get[struct{}](context.Background(), client, "/api/courses/")
	classified := asClassified(t, err)
	if classified.Kind != KindAuth {
		t.Errorf("kind = %s, want auth", classified.Kind)
	}

	if logouts != 1 {
		t.Errorf("logout signals = %d, want 1", logouts)
	}
	if got := navigator.Visits(); got != 1 {
		t.Errorf("navigations = %d, want 1", got)
	}

	// Termination tolerates the read-only Clear; the variable is untouched.
	token, err := store.Get(context.Background(), credstore.KindAccess)
	if err != nil || token != "T1" {
		t.Errorf("stored token = %q, %v; want T1 intact", token, err)
	}
}

// faultyStore fails every read the way a credential file with insecure
// permissions does.
type faultyStore struct{}

func (faultyStore) Get(ctx context.Context, kind credstore.Kind) (string, error) {
	return "", errors.New("credential file has insecure permissions")
}
func (faultyStore) Set(ctx context.Context, kind credstore.Kind, value string) error { return nil }
func (faultyStore) Clear(ctx context.Context) error                                  { return nil }
func (faultyStore) Scope() string                                                    { return "" }

func TestCredentialReadFaultIsNotNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	t.Cleanup(server.Close)

	broadcaster, err := session.NewBroadcaster(faultyStore{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	client, err := New(server.URL, faultyStore{}, broadcaster)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Get[map[string]bool](context.Background(), client, "/api/courses/")
	var classified *ClassifiedError
	if !errors.As(err, &classified) {
		t.Fatalf("expected a classified error, got %v", err)
	}
	if classified.Kind != KindUnknown {
		t.Errorf("kind = %s, want unknown (a local storage fault is not a network failure)", classified.Kind)
	}
}

func asClassified(t *testing.T, err error) *ClassifiedError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	classified := Classify(err)
	if classified.Kind == KindUnknown && classified.StatusCode == 0 {
		t.Fatalf("error was not classified: %v", err)
	}
	return classified
}
