package internal

import (
	"errors"
	"net/http"

	"it-asset-manager-api/internal/logging"
	"it-asset-manager-api/pkg/models"
	"it-asset-manager-api/pkg/store"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx reply
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := codec.NewEncoder(w).Encode(v); err != nil {
		// headers are gone; nothing left to report to the client
		return
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return codec.NewDecoder(r.Body).Decode(dst)
}

// writeStoreError maps a store failure onto a status code. Driver text only
// reaches the client on 500s, and only when details are enabled.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch store.KindOf(err) {
	case store.KindValidation:
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request")
	case store.KindNotFound:
		writeError(w, http.StatusNotFound, msgNotFound)
	case store.KindConflict:
		writeError(w, http.StatusConflict, msgConflict)
	default:
		logging.FromContext(r.Context()).WithError(err).Error("store operation failed")
		resp := errorResponse{Error: msgInternal}
		if s.exposeDetails {
			resp.Details = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

const (
	msgInvalidJSON = "invalid JSON"
	msgNotFound    = "asset not found"
	msgConflict    = "an asset with this serial number already exists"
	msgInternal    = "internal server error"
)
