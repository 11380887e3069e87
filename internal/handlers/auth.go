package handlers

import (
	"net/http"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.authService.Register(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, session)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.authService.Login(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, session)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFromContext(r.Context())
	account, err := h.authService.Me(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, account)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input services.UpdateProfileInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := identityFromContext(r.Context())
	account, err := h.authService.UpdateProfile(r.Context(), actor, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, account)
}
