package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finledger/recon-backend/internal/api/dto"
	"github.com/finledger/recon-backend/internal/application/recon"
	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	WriteJSON(w, status, err)
}

// WriteServiceError maps a service error to an HTTP response: missing
// parent records become 404, everything else is a 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
		return
	}
	if errors.Is(err, recon.ErrLineOutOfRange) {
		WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}
	WriteError(w, http.StatusInternalServerError, dto.InternalError())
}

// DecodeJSON decodes a request body, writing a bad request response on
// failure. Returns false if decoding failed.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return false
	}
	return true
}
