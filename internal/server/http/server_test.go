package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"

	"github.com/Cantido/hematite/internal/auth"
	"github.com/Cantido/hematite/internal/metrics"
	"github.com/Cantido/hematite/internal/streammgr"
	"github.com/Cantido/hematite/pkg/log"
)

const testAudience = "hematite"
const testSecret = "test-secret"

func testToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{testAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	mgr, err := streammgr.New(dir, streammgr.Options{})
	if err != nil {
		t.Fatalf("streammgr.New: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	verifier, err := auth.NewVerifier(auth.KeySource{HMACSecret: []byte(testSecret)}, testAudience)
	if err != nil {
		t.Fatalf("auth.NewVerifier: %v", err)
	}
	policy, err := auth.LoadPolicy("")
	if err != nil {
		t.Fatalf("auth.LoadPolicy: %v", err)
	}
	m := metrics.New()
	logger := log.NewLogger(log.WithLevel(log.ErrorLevel), log.WithOutput(&log.NullOutput{}))

	return New(mgr, verifier, policy, m, otel.Tracer("test"), logger)
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthzDoesNotRequireAuth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := doRequest(s, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAppendRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/streams/orders/events", bytes.NewReader([]byte(`[]`)))
	w := doRequest(s, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAppendThenGetRoundtrips(t *testing.T) {
	s := newTestServer(t)
	token := testToken(t, "alice")

	event := map[string]any{
		"specversion": "1.0",
		"id":          "evt-1",
		"source":      "test",
		"type":        "order.created",
	}
	body, _ := json.Marshal([]any{event})

	req := httptest.NewRequest(http.MethodPost, "/streams/orders/events", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := doRequest(s, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("append status = %d, body = %s", w.Code, w.Body.String())
	}

	var created struct {
		Data struct {
			Attributes struct {
				Revision uint64 `json:"revision"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode append response: %v", err)
	}
	if created.Data.Attributes.Revision != 1 {
		t.Fatalf("revision = %d, want 1", created.Data.Attributes.Revision)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/streams/orders/events/0", nil)
	getReq.Header.Set("Authorization", "Bearer "+token)
	getW := doRequest(s, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", getW.Code, getW.Body.String())
	}

	var got struct {
		Data struct {
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(getW.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got.Data.Attributes["id"] != "evt-1" {
		t.Fatalf("attributes.id = %v, want evt-1", got.Data.Attributes["id"])
	}
}

func TestAppendWithWrongExpectedRevisionConflicts(t *testing.T) {
	s := newTestServer(t)
	token := testToken(t, "alice")
	event := map[string]any{"specversion": "1.0", "id": "evt-1", "source": "test", "type": "order.created"}
	body, _ := json.Marshal([]any{event})

	req := httptest.NewRequest(http.MethodPost, "/streams/orders/events?expected_revision=5", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := doRequest(s, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", w.Code, w.Body.String())
	}

	var conflict struct {
		Expected uint64 `json:"expected"`
		Actual   uint64 `json:"actual"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if conflict.Expected != 5 || conflict.Actual != 0 {
		t.Fatalf("expected/actual = %d/%d, want 5/0", conflict.Expected, conflict.Actual)
	}
}

func TestGetRevisionOnMissingStreamReturns404(t *testing.T) {
	s := newTestServer(t)
	token := testToken(t, "alice")
	req := httptest.NewRequest(http.MethodGet, "/streams/ghost/events/0", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := doRequest(s, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStreamInfoReportsRevision(t *testing.T) {
	s := newTestServer(t)
	token := testToken(t, "alice")
	event := map[string]any{"specversion": "1.0", "id": "evt-1", "source": "test", "type": "order.created"}
	body, _ := json.Marshal([]any{event})

	postReq := httptest.NewRequest(http.MethodPost, "/streams/orders/events", bytes.NewReader(body))
	postReq.Header.Set("Authorization", "Bearer "+token)
	doRequest(s, postReq)

	infoReq := httptest.NewRequest(http.MethodGet, "/streams/orders", nil)
	infoReq.Header.Set("Authorization", "Bearer "+token)
	w := doRequest(s, infoReq)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var info struct {
		Data struct {
			Attributes struct {
				Revision uint64 `json:"revision"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info response: %v", err)
	}
	if info.Data.Attributes.Revision != 1 {
		t.Fatalf("revision = %d, want 1", info.Data.Attributes.Revision)
	}
}

func TestInvalidStreamIDRejected(t *testing.T) {
	s := newTestServer(t)
	token := testToken(t, "alice")
	req := httptest.NewRequest(http.MethodGet, "/streams/bad.stream.id/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := doRequest(s, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a stream id containing '.'", w.Code)
	}
}
