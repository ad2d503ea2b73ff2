package authapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fansite/cmd/identity"
	"fansite/cmd/internal/auth/session"
	"fansite/cmd/security/password"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv     *httptest.Server
	users   *identity.MemoryStore
	auditor *MemoryAuditor
	svc     *session.Service
}

func newTestEnv(t *testing.T, mutate func(*Config)) testEnv {
	t.Helper()

	pc := password.DefaultConfig()
	pc.Params.MemoryKiB = 8 * 1024
	pc.Params.Iterations = 1
	pc.Params.Parallelism = 1
	hasher, err := identity.NewHasher(pc)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	users, err := identity.NewMemoryStore(hasher, identity.DefaultLockoutPolicy())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}

	scfg := session.DefaultConfig()
	scfg.SigningKey = []byte(testSigningKey)
	tokens, err := session.NewJWTManager(scfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	svc, err := session.NewService(scfg, users, session.NewMemoryStore(), tokens, session.WithDecoy(hasher))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	auditor := NewMemoryAuditor()
	h, err := NewHandler(nil, svc, auditor, cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return testEnv{srv: srv, users: users, auditor: auditor, svc: svc}
}

// do sends body (JSON-encoded unless it is already a string) and returns the
// status, headers and raw response body.
func (e testEnv) do(t *testing.T, method, path string, body any, bearer string) (int, http.Header, []byte) {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	out, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, res.Header, out
}

func decodeAuth(t *testing.T, raw []byte) authResponse {
	t.Helper()
	var out authResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode auth response: %v (%s)", err, raw)
	}
	return out
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var out errorResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, raw)
	}
	return out.Error.Code
}
