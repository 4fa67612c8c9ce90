package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/app/services/ledger/handlers"
	"github.com/ardanlabs/powledger/business/sys/metrics"
	v1 "github.com/ardanlabs/powledger/business/web/v1"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type server struct {
	api   http.Handler
	debug http.Handler
	kv    *memory.Memory
	evts  *events.Events
	root  string
}

func newServer(t *testing.T) *server {
	t.Helper()

	log := zap.NewNop().Sugar()
	kv := memory.New()
	evts := events.New()
	t.Cleanup(evts.Shutdown)

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		if strings.HasPrefix(s, "viewer:") {
			evts.Send(s)
		}
	}

	st, err := state.New(state.Config{KV: kv, EvHandler: ev})
	require.NoError(t, err)

	difficulty := 0
	root, _, err := st.Seed(context.Background(), genesis.Genesis{
		Nonce:      "root",
		Miner:      "genesis",
		Accounts:   []string{"alice", "bob"},
		Difficulty: &difficulty,
	})
	require.NoError(t, err)

	m := metrics.New()

	return &server{
		api: handlers.APIMux(handlers.APIMuxConfig{
			Shutdown:   make(chan os.Signal, 1),
			Log:        log,
			Metrics:    m,
			State:      st,
			Evts:       evts,
			CORSOrigin: "*",
		}),
		debug: handlers.DebugMux("test", log, kv, m),
		kv:    kv,
		evts:  evts,
		root:  root.Hash,
	}
}

func (s *server) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.api.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func block(parent string, nonce string, miner string, message string) map[string]string {
	return map[string]string{
		"parent_hash": parent,
		"nonce":       nonce,
		"miner":       miner,
		"message":     message,
	}
}

// =============================================================================

func TestCORS(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodOptions, "/v1/blocks", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "false", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "HEAD,GET,POST,PUT,OPTIONS", w.Header().Get("Allow"))
}

func TestUsers(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/v1/users/carol", nil)
	require.Equal(t, http.StatusOK, w.Code)

	acct := decode[struct {
		Name      string             `json:"name"`
		IsNewUser bool               `json:"is_new_user"`
		Balance   map[string]float64 `json:"balance"`
	}](t, w)
	assert.Equal(t, "carol", acct.Name)
	assert.True(t, acct.IsNewUser)
	assert.Equal(t, map[string]float64{s.root: 0}, acct.Balance)

	w = s.do(t, http.MethodGet, "/v1/users/carol", nil)
	assert.Contains(t, w.Body.String(), `"is_new_user":false`)

	w = s.do(t, http.MethodGet, "/v1/users/bad%20name", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"alice", "bob", "carol"}, decode[[]string](t, w))
}

func TestSubmitBlock(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/v1/blocks", block(s.root, "1", "alice", "first"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	created := decode[map[string]any](t, w)
	hash := pow.Hash(s.root, "1")
	assert.Equal(t, hash, created["hash"])
	assert.Equal(t, s.root, created["parent_hash"])

	w = s.do(t, http.MethodGet, "/v1/blocks/"+strings.ToUpper(hash), nil)
	require.Equal(t, http.StatusOK, w.Code)

	detail := decode[struct {
		Hash    string             `json:"hash"`
		Balance map[string]float64 `json:"balance"`
	}](t, w)
	assert.Equal(t, hash, detail.Hash)
	assert.Equal(t, float64(pow.LeadingZeros(hash)), detail.Balance["alice"])
	assert.Zero(t, detail.Balance["bob"])

	w = s.do(t, http.MethodGet, "/v1/balances/alice/"+strings.ToUpper(hash), nil)
	require.Equal(t, http.StatusOK, w.Code)

	bal := decode[struct {
		Account string  `json:"account"`
		Hash    string  `json:"hash"`
		Balance float64 `json:"balance"`
	}](t, w)
	assert.Equal(t, "alice", bal.Account)
	assert.Equal(t, hash, bal.Hash)
	assert.Equal(t, float64(pow.LeadingZeros(hash)), bal.Balance)

	w = s.do(t, http.MethodGet, "/v1/blocks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	idx := decode[struct {
		Blocks []map[string]any `json:"blocks"`
		Users  []string         `json:"users"`
	}](t, w)
	assert.Len(t, idx.Blocks, 2)
	assert.Equal(t, []string{"alice", "bob"}, idx.Users)
}

func TestSubmitForm(t *testing.T) {
	s := newServer(t)

	form := url.Values{
		"prev":  {s.root},
		"nonce": {"7"},
		"miner": {"bob"},
		"msg":   {""},
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/blocks", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.api.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), pow.Hash(s.root, "7"))
}

func TestSubmitRejected(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/v1/blocks", block(s.root, "1", "alice", ""))
	require.Equal(t, http.StatusOK, w.Code)

	tt := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"missing", map[string]string{"nonce": "1"}, http.StatusBadRequest, "MissingField"},
		{"format", block("abc", "1", "alice", ""), http.StatusBadRequest, "InvalidFormat"},
		{"miner", block(s.root, "2", "zed", ""), http.StatusBadRequest, "UnregisteredMiner"},
		{"parent", block(strings.Repeat("0", 64), "1", "alice", ""), http.StatusUnprocessableEntity, "UnknownParent"},
		{"duplicate", block(s.root, "1", "alice", ""), http.StatusConflict, "DuplicateBlock"},
		{"party", block(s.root, "3", "alice", "bob,zed,1"), http.StatusBadRequest, "UnregisteredParty"},
		{"self-payout", block(s.root, "4", "alice", "bob,alice,1"), http.StatusUnprocessableEntity, "SelfPayoutConflict"},
		{"unknown-field", map[string]string{"hash": "x"}, http.StatusBadRequest, ""},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/v1/blocks", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())

			er := decode[v1.ErrorResponse](t, w)
			assert.Equal(t, tc.kind, er.Kind)
			assert.NotEmpty(t, er.Error)
		})
	}
}

func TestGetBlockErrors(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/v1/blocks/zzz", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/blocks/"+strings.Repeat("a", 64), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettings(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"difficulty":0,"transfer_charge":0.1}`, w.Body.String())

	w = s.do(t, http.MethodPut, "/v1/settings/difficulty", map[string]int{"difficulty": 70})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[v1.ErrorResponse](t, w).Fields, "difficulty")

	w = s.do(t, http.MethodPut, "/v1/settings/difficulty", map[string]int{"difficulty": 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, "/v1/settings/transfer-charge", map[string]float64{"transfer_charge": 0.25})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/settings/difficulty", nil)
	assert.JSONEq(t, `{"difficulty":3}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/settings/transfer-charge", nil)
	assert.JSONEq(t, `{"transfer_charge":0.25}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/blocks", block(s.root, mineBelow(s.root, 3), "alice", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "InsufficientDifficulty", decode[v1.ErrorResponse](t, w).Kind)
}

func TestStoreUnavailable(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.kv.Close())

	w := s.do(t, http.MethodGet, "/v1/blocks", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/debug/readiness", nil)
	rw := httptest.NewRecorder()
	s.debug.ServeHTTP(rw, r)
	assert.Equal(t, http.StatusInternalServerError, rw.Code)
}

func TestDebug(t *testing.T) {
	s := newServer(t)
	s.do(t, http.MethodGet, "/v1/users", nil)

	for _, path := range []string{"/debug/readiness", "/debug/liveness", "/metrics"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.debug.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.debug.ServeHTTP(w, r)
	assert.Contains(t, w.Body.String(), "ledger_api_requests_total")
}

func TestEvents(t *testing.T) {
	s := newServer(t)

	srv := httptest.NewServer(s.api)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.evts.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	w := s.do(t, http.MethodPost, "/v1/blocks", block(s.root, "9", "alice", ""))
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(msg), "viewer: block: "))
	assert.Contains(t, string(msg), pow.Hash(s.root, "9"))
}

// mineBelow finds a nonce whose hash has fewer leading zeros than the
// difficulty.
func mineBelow(parent string, difficulty int) string {
	for i := 100; ; i++ {
		nonce := strconv.Itoa(i)
		if pow.LeadingZeros(pow.Hash(parent, nonce)) < difficulty {
			return nonce
		}
	}
}
