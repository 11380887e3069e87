package handlers

import (
	"net/http"
	"strings"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := models.Role(strings.TrimSpace(r.URL.Query().Get("rol")))
	users, err := h.userService.List(r.Context(), role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, users)
}

func (h *Handlers) ListCouriers(w http.ResponseWriter, r *http.Request) {
	couriers, err := h.userService.ListCouriers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, couriers)
}

func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input services.UpdateRoleInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := identityFromContext(r.Context())
	account, err := h.userService.UpdateRole(r.Context(), actor, id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, account)
}

func (h *Handlers) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input services.UpdateStatusAccountInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := identityFromContext(r.Context())
	account, err := h.userService.SetActive(r.Context(), actor, id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, account)
}
