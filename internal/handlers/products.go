package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	featured, _ := strconv.ParseBool(strings.TrimSpace(query.Get("destacado")))
	products, err := h.productService.List(r.Context(), services.ProductQuery{
		Category: query.Get("categoria"),
		Search:   strings.TrimSpace(query.Get("buscar")),
		Featured: featured,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := h.productService.Get(r.Context(), id, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, product)
}

func (h *Handlers) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ListLowStock(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, r, products)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input services.ProductInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := h.productService.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, product)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var input services.ProductInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := h.productService.Update(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, product)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.productService.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Producto desactivado")
}
