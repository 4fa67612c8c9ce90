package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/powledger/business/sys/metrics"
	v1 "github.com/ardanlabs/powledger/business/web/v1"
	"github.com/ardanlabs/powledger/business/web/v1/mid"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(t *testing.T, m *metrics.Metrics, h web.Handler) (*httptest.ResponseRecorder, v1.ErrorResponse) {
	t.Helper()

	log := zap.NewNop().Sugar()
	app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Metrics(m), mid.Cors("https://example.com"), mid.Panics())
	app.Handle(http.MethodGet, "", "/x", h)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var er v1.ErrorResponse
	if w.Code != http.StatusOK {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&er))
	}
	return w, er
}

func TestErrors(t *testing.T) {
	m := metrics.New()

	w, er := serve(t, m, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return v1.LedgerError(&state.ValidationError{Kind: state.UnknownParent, Field: "parent_hash", Detail: "parent_hash: block x doesn't exist"})
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "UnknownParent", er.Kind)
	assert.Equal(t, "SemanticallyInvalid", er.Category)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w, er = serve(t, m, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errors.New("secret detail")
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), er.Error)
}

func TestPanics(t *testing.T) {
	m := metrics.New()

	w, er := serve(t, m, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, er.Error, "boom")
}

func TestOK(t *testing.T) {
	w, _ := serve(t, metrics.New(), func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
