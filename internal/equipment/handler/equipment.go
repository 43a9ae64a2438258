package handler

import (
	"encoding/json"
	"net/http"

	"labreserve/internal/equipment/service"
	httputil "labreserve/pkg/http"
	"labreserve/pkg/logger"
	"labreserve/pkg/middleware"
	"labreserve/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type EquipmentHandler struct {
	service   service.EquipmentService
	adminOnly func(httprouter.Handle) httprouter.Handle
	log       *logger.Logger
}

func NewEquipmentHandler(service service.EquipmentService, log *logger.Logger) *EquipmentHandler {
	return &EquipmentHandler{
		service:   service,
		adminOnly: middleware.RequireAdmin(log),
		log:       log,
	}
}

func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var equipment model.Equipment
	if err := json.NewDecoder(r.Body).Decode(&equipment); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.Create(r.Context(), &equipment); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, equipment); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *EquipmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	equipment, err := h.service.FindByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, equipment); err != nil {
		h.log.Error("failed to write response", "handler", "GetByID", "error", err)
	}
}

func (h *EquipmentHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	equipment, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, equipment, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.EquipmentUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.Update(r.Context(), ps.ByName("id"), &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *EquipmentHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "error", writeErr)
	}
}

func (h *EquipmentHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "error", err)
	}
}

func (h *EquipmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/equipment", h.GetAll)
	router.GET("/api/v1/equipment/id/:id", h.GetByID)
	router.POST("/api/v1/equipment", h.adminOnly(h.Create))
	router.PATCH("/api/v1/equipment/id/:id", h.adminOnly(h.Update))
	router.DELETE("/api/v1/equipment/id/:id", h.adminOnly(h.Delete))
}
