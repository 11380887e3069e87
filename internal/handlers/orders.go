package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input services.CreateOrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	actor, _ := identityFromContext(r.Context())
	order, err := h.orderService.Create(r.Context(), actor, input, r.Header.Get(idempotencyHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, order)
}

func (h *Handlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFromContext(r.Context())
	orders, err := h.orderService.ListMine(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, orders)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(strings.TrimSpace(r.URL.Query().Get("estado")))
	orders, err := h.orderService.ListAll(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, orders)
}

func (h *Handlers) AvailableOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListAvailable(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := identityFromContext(r.Context())
	order, err := h.orderService.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, order)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input services.UpdateStatusInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	actor, _ := identityFromContext(r.Context())
	order, err := h.orderService.UpdateStatus(r.Context(), actor, id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, order)
}

type assignRequest struct {
	CourierID uuid.UUID `json:"repartidorId"`
}

func (h *Handlers) AssignOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input assignRequest
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	actor, _ := identityFromContext(r.Context())
	order, err := h.orderService.Assign(r.Context(), actor, id, input.CourierID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, order)
}

func (h *Handlers) TakeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := identityFromContext(r.Context())
	order, err := h.orderService.Take(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, order)
}

func (h *Handlers) RateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input services.RateInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	actor, _ := identityFromContext(r.Context())
	order, err := h.orderService.Rate(r.Context(), actor, id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, order)
}

func (h *Handlers) ShareLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input services.LocationInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	actor, _ := identityFromContext(r.Context())
	if err := h.orderService.ShareLocation(r.Context(), actor, id, input); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Ubicación compartida")
}
