package handler

import (
	"context"
	"net/http"

	"courtbook/internal/bookings/events"
	"courtbook/internal/bookings/service"
	apperrors "courtbook/pkg/errors"
	httputil "courtbook/pkg/http"
	"courtbook/pkg/logger"
	"courtbook/pkg/middleware"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// requestContext carries the request id into published events.
func requestContext(r *http.Request) context.Context {
	return events.WithCorrelationID(r.Context(), middleware.RequestID(r.Context()))
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()

	start, err := httputil.ParseTimeParam(query, "start")
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}
	end, err := httputil.ParseTimeParam(query, "end")
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}
	if start == nil || end == nil {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("start and end query parameters are required"))
		return
	}

	availability, err := h.service.CheckAvailability(r.Context(), ps.ByName("court_id"), *start, *end)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) AddMaintenance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, err := httputil.RequireIdentity(r)
	if err != nil {
		h.writeError(w, "AddMaintenance", err)
		return
	}

	var block model.MaintenanceBlock
	if err := httputil.DecodeJSON(r, &block); err != nil {
		h.writeError(w, "AddMaintenance", err)
		return
	}
	block.CourtID = ps.ByName("court_id")

	created, err := h.service.AddMaintenanceBlock(r.Context(), identity.UserID, &block)
	if err != nil {
		h.writeError(w, "AddMaintenance", err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "AddMaintenance", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, err := httputil.RequireIdentity(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req model.CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	req.UserID = identity.UserID

	booking, err := h.service.Create(requestContext(r), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetBooking(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, err := httputil.RequireIdentity(r)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	booking, err := h.service.Confirm(requestContext(r), ps.ByName("id"), identity.UserID)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, err := httputil.RequireIdentity(r)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	booking, err := h.service.Cancel(requestContext(r), ps.ByName("id"), identity.UserID, identity.Role)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, err := httputil.RequireIdentity(r)
	if err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), identity.UserID); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, err := httputil.RequireIdentity(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	filter, err := filterFromRequest(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	bookings, total, err := h.service.ListForUser(r.Context(), identity.UserID, filter)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ListOwner(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, err := httputil.RequireIdentity(r)
	if err != nil {
		h.writeError(w, "ListOwner", err)
		return
	}

	filter, err := filterFromRequest(r)
	if err != nil {
		h.writeError(w, "ListOwner", err)
		return
	}

	bookings, total, err := h.service.ListForOwner(r.Context(), identity.UserID, filter)
	if err != nil {
		h.writeError(w, "ListOwner", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListOwner", "operation", "WritePaginated", "error", err)
	}
}

func filterFromRequest(r *http.Request) (model.BookingFilter, error) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		return model.BookingFilter{}, err
	}

	query := r.URL.Query()
	from, err := httputil.ParseTimeParam(query, "from")
	if err != nil {
		return model.BookingFilter{}, err
	}
	to, err := httputil.ParseTimeParam(query, "to")
	if err != nil {
		return model.BookingFilter{}, err
	}

	return model.BookingFilter{
		CourtID:    query.Get("court_id"),
		FacilityID: query.Get("facility_id"),
		Status:     model.BookingStatus(query.Get("status")),
		From:       from,
		To:         to,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/courts/:court_id/availability", h.CheckAvailability)
	router.POST("/api/v1/courts/:court_id/maintenance", h.AddMaintenance)

	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/mine", h.ListMine)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.DELETE("/api/v1/bookings/id/:id", h.Delete)

	router.GET("/api/v1/owner/bookings", h.ListOwner)
}
