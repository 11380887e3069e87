package handlers

import (
	"net/http"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "orderId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := identityFromContext(r.Context())
	messages, err := h.messageService.List(r.Context(), actor, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, messages)
}

func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "orderId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input services.SendMessageInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	actor, _ := identityFromContext(r.Context())
	message, err := h.messageService.Send(r.Context(), actor, orderID, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, message)
}
