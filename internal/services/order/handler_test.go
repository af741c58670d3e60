package order

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
	"pos-terminal/internal/services/syncer"
)

const origin = "http://till.local"

func newRouter(t *testing.T, online bool) (*gin.Engine, *harness) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := newHarness(t, online, 10)
	currency, err := models.NewCurrency("PHP", "en-PH")
	require.NoError(t, err)

	handler := NewHandler(HandlerDeps{
		Service:      h.svc,
		Coordinator:  syncer.NewCoordinator(h.queue, h.writer, h.bus, logger.Discard(), 0),
		Queue:        h.queue,
		Network:      h.net,
		Hub:          NewHub(h.bus, []string{origin}, logger.Discard()),
		Currency:     currency,
		AllowOrigins: []string{origin},
		Logger:       logger.Discard(),
	})
	return handler.SetupRoutes(), h
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	r, _ := newRouter(t, false)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["online"])
	assert.Equal(t, float64(0), body["pending"])
	assert.Equal(t, "IDLE", body["sync_state"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAddLine(t *testing.T) {
	r, _ := newRouter(t, true)

	w := do(r, http.MethodPost, "/cart/lines", `{"item_id":"lechon","quantity":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "900", body["subtotal"])
	assert.Len(t, body["lines"], 1)
}

func TestAddLine_Errors(t *testing.T) {
	r, _ := newRouter(t, true)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
		field  string
	}{
		{"missing item id", `{"quantity":1}`, http.StatusBadRequest, "INVALID_INPUT", "item_id"},
		{"unknown item", `{"item_id":"balut"}`, http.StatusNotFound, "", ""},
		{"variant required", `{"item_id":"halo-halo"}`, http.StatusBadRequest, "INVALID_INPUT", "variant"},
		{"malformed json", `{"item_id":`, http.StatusBadRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/cart/lines", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			body := decodeBody(t, w)
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["request_id"])
			if tt.kind != "" {
				assert.Equal(t, tt.kind, body["kind"])
				assert.Equal(t, tt.field, body["field"])
			}
		})
	}
}

func TestAddLine_RequiresJSON(t *testing.T) {
	r, _ := newRouter(t, true)

	req := httptest.NewRequest(http.MethodPost, "/cart/lines", strings.NewReader(`{"item_id":"rice"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLineNotFound(t *testing.T) {
	r, _ := newRouter(t, true)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/cart/lines/nope", `{"quantity":2}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/cart/lines/nope/increment", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/cart/lines/nope", "").Code)
}

func TestDiscount(t *testing.T) {
	r, _ := newRouter(t, true)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/cart/lines", `{"item_id":"lechon","quantity":2}`).Code)

	w := do(r, http.MethodPut, "/cart/discount", `{"type":"PWD","total_pax":2,"eligible_count":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/cart/discount", `{"type":"SENIOR","total_pax":4,"eligible_count":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "45", body["discount"])
	assert.Equal(t, "855", body["total"])

	w = do(r, http.MethodDelete, "/cart/discount", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "900", decodeBody(t, w)["total"])
}

func TestCheckout_QueuedThenSynced(t *testing.T) {
	r, h := newRouter(t, false)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/cart/lines", `{"item_id":"lechon"}`).Code)

	w := do(r, http.MethodPost, "/checkout", `{"payment_method":"CASH","tendered":"500","order_type":"TAKEOUT"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "Saved offline, will sync", body["message"])

	w = do(r, http.MethodGet, "/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["pending"])

	w = do(r, http.MethodPost, "/network", `{"online":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decodeBody(t, w)["changed"])

	w = do(r, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeBody(t, w)["result"].(map[string]interface{})
	assert.Equal(t, float64(1), result["synced"])
	assert.Equal(t, 0, h.queue.Len())
}

func TestCheckout_Errors(t *testing.T) {
	r, _ := newRouter(t, true)

	w := do(r, http.MethodPost, "/checkout", `{"payment_method":"CASH","tendered":"0","order_type":"TAKEOUT"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EMPTY_ORDER", decodeBody(t, w)["kind"])

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/cart/lines", `{"item_id":"lechon"}`).Code)

	w = do(r, http.MethodPost, "/checkout", `{"payment_method":"CASH","tendered":"400","order_type":"TAKEOUT"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = do(r, http.MethodPost, "/checkout", `{"payment_method":"DIGITAL","order_type":"TAKEOUT"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_REFERENCE", decodeBody(t, w)["kind"])

	w = do(r, http.MethodPost, "/checkout", `{"payment_method":"CASH","tendered":"500","order_type":"DINE_IN"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "table_number", decodeBody(t, w)["field"])

	w = do(r, http.MethodPost, "/checkout", `{"payment_method":"CASH","tendered":"500","order_type":"TAKEOUT"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "synced", decodeBody(t, w)["status"])
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newRouter(t, true)

	req := httptest.NewRequest(http.MethodOptions, "/checkout", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHub_StreamsEvents(t *testing.T) {
	r, h := newRouter(t, true)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{origin}})
	require.NoError(t, err)
	defer conn.Close()

	h.bus.Publish(models.SyncEvent{Type: models.EventOrderQueued, OrderNumber: "ORD_20260309_001", Pending: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.SyncEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventOrderQueued, ev.Type)
	assert.Equal(t, "ORD_20260309_001", ev.OrderNumber)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	r, _ := newRouter(t, true)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.local"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
