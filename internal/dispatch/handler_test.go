package dispatch

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)
	return r, svc
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"employee_id": 1,
	"vehicle_id": 2,
	"route_id": 3,
	"scheduled_date": "2026-08-28T00:00:00Z",
	"scheduled_time": "06:30",
	"products": [
		{"product_id": 10, "loaded_quantity": "60"},
		{"product_id": 20, "loaded_quantity": "40"}
	],
	"stops": [
		{"stop_sequence": 1, "customer_name": "Sharma Stores", "planned_boxes": "60", "planned_amount": "600"},
		{"stop_sequence": 2, "customer_name": "Gupta Traders", "planned_boxes": "40", "planned_amount": "400"}
	]
}`

func TestHandlerCreateAndGet(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/deliveries", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created DeliveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "DLV-202608-0001", created.Delivery.DeliveryNumber)

	rec = doJSON(t, r, http.MethodGet, "/deliveries/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got DeliveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, StatusScheduled, got.Delivery.Status)
	assert.True(t, got.Summary.PlannedAmount.Equal(dec("1000")))
}

func TestHandlerGetByNumber(t *testing.T) {
	r, _ := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/deliveries", createBody)

	rec := doJSON(t, r, http.MethodGet, "/deliveries/number/DLV-202608-0001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DeliveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Delivery.ID)

	rec = doJSON(t, r, http.MethodGet, "/deliveries/number/DLV-000000-9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGetNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/deliveries/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")

	rec = doJSON(t, r, http.MethodGet, "/deliveries/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCreateValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/deliveries", `{"employee_id": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/deliveries", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerLifecycleFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/deliveries", createBody)

	rec := doJSON(t, r, http.MethodPost, "/deliveries/1/start", `{"odometer_reading": "12345.6"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Starting twice is a state conflict, not a validation problem.
	rec = doJSON(t, r, http.MethodPost, "/deliveries/1/start", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/deliveries/1/next-stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var next NextStopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	require.True(t, next.Remaining)
	assert.Equal(t, 1, next.Stop.StopSequence)

	rec = doJSON(t, r, http.MethodPatch, "/delivery-stops/1",
		`{"delivered_boxes": "60", "collected_amount": "600", "status": "delivered"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stopResp StopCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stopResp))
	assert.Equal(t, StopDelivered, stopResp.Stop.Status)
	assert.True(t, stopResp.Summary.BalanceCash.Equal(dec("400")))

	// Repeating the patch hits the completed-stop guard.
	rec = doJSON(t, r, http.MethodPatch, "/delivery-stops/1",
		`{"delivered_boxes": "1", "collected_amount": "1", "status": "failed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/deliveries/1/complete",
		`{"products": [{"product_id": 10, "delivered_quantity": "60"}, {"product_id": 20, "delivered_quantity": "30"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var completed DeliveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, StatusCompleted, completed.Delivery.Status)
	assert.True(t, completed.Delivery.DeliveryEfficiency.Equal(dec("90")))
}

func TestHandlerNextStopExhausted(t *testing.T) {
	r, _ := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/deliveries", createBody)
	doJSON(t, r, http.MethodPost, "/deliveries/1/start", `{}`)
	doJSON(t, r, http.MethodPatch, "/delivery-stops/1", `{"delivered_boxes": "60", "collected_amount": "600", "status": "delivered"}`)
	doJSON(t, r, http.MethodPatch, "/delivery-stops/2", `{"delivered_boxes": "40", "collected_amount": "400", "status": "delivered"}`)

	rec := doJSON(t, r, http.MethodGet, "/deliveries/1/next-stop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var next NextStopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	assert.False(t, next.Remaining)
	assert.Nil(t, next.Stop)
}

func TestHandlerCancel(t *testing.T) {
	r, _ := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/deliveries", createBody)

	rec := doJSON(t, r, http.MethodPost, "/deliveries/1/cancel", `{"reason": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/deliveries/1/cancel", `{"reason": "route flooded"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DeliveryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusCancelled, resp.Delivery.Status)
}

func TestHandlerList(t *testing.T) {
	r, _ := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/deliveries", createBody)

	rec := doJSON(t, r, http.MethodGet, "/deliveries?status=scheduled&page=1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 10, resp.Limit)

	rec = doJSON(t, r, http.MethodGet, "/deliveries?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerStoreUnavailable(t *testing.T) {
	svc, store := newTestService(t)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)

	store.failTx = true
	rec := doJSON(t, r, http.MethodPost, "/deliveries", createBody)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "safe to retry")
}
