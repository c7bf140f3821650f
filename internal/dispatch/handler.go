package dispatch

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk/internal/platform/httpx"
)

// Handler manages the delivery record API endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the dispatch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/deliveries", func(r chi.Router) {
		r.Get("/", h.listDeliveries)
		r.Post("/", h.createDelivery)
		r.Get("/number/{number}", h.getDeliveryByNumber)
		r.Get("/{id}", h.getDelivery)
		r.Get("/{id}/next-stop", h.nextStop)
		r.Post("/{id}/start", h.startDelivery)
		r.Post("/{id}/complete", h.completeDelivery)
		r.Post("/{id}/cancel", h.cancelDelivery)
	})
	r.Patch("/delivery-stops/{id}", h.completeStop)
}

// respondErr maps the dispatch error taxonomy onto problem responses.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr  *ValidationError
		tErr  *InvalidTransitionError
		sErr  *InvalidStateError
		trErr *TransportError
	)
	switch {
	case errors.As(err, &vErr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", vErr.Error())
	case errors.As(err, &tErr):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", tErr.Error())
	case errors.As(err, &sErr):
		httpx.Problem(w, http.StatusConflict, "Stop Already Completed", sErr.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.As(err, &trErr):
		h.logger.Error("store call failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "the operation did not apply and is safe to retry")
	default:
		h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) createDelivery(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "delivery id must be an integer")
		return
	}
	resp, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getDeliveryByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Number", "delivery number is required")
		return
	}
	resp, err := h.service.GetByNumber(r.Context(), number)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	req := ListRequest{}
	q := r.URL.Query()

	if status := q.Get("status"); status != "" {
		st := DeliveryStatus(status)
		if !st.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+status)
			return
		}
		req.Status = &st
	}
	if v := q.Get("employee_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.EmployeeID = &id
		}
	}
	if v := q.Get("vehicle_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.VehicleID = &id
		}
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateTo = &t
		}
	}
	if v := q.Get("search"); v != "" {
		req.Search = &v
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	req.Limit = limit
	req.Offset = (page - 1) * limit

	resp, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) startDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "delivery id must be an integer")
		return
	}
	var req StartRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	resp, err := h.service.Start(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) completeDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "delivery id must be an integer")
		return
	}
	var req CompleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	resp, err := h.service.Complete(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) cancelDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "delivery id must be an integer")
		return
	}
	var req CancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	resp, err := h.service.Cancel(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) nextStop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "delivery id must be an integer")
		return
	}
	stop, err := h.service.NextStop(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNoStopsRemaining) {
			httpx.JSON(w, http.StatusOK, NextStopResponse{Remaining: false})
			return
		}
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NextStopResponse{Remaining: true, Stop: stop})
}

func (h *Handler) completeStop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "stop id must be an integer")
		return
	}
	var req StopCompletion
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	resp, err := h.service.CompleteStop(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}
