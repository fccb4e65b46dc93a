package internal

import (
	"errors"
	"net/http"
	"strconv"

	"it-asset-manager-api/internal/logging"
	"it-asset-manager-api/pkg/models"

	"github.com/go-chi/chi/v5"
)

// parseID reads the {id} route parameter. Anything but a positive integer
// cannot name an asset, so callers answer 404.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// listAssets returns every asset, newest first
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.Store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// getAsset handles getting a single asset by ID
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	a, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// createAsset handles asset creation
func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	a, err := s.Store.Create(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).WithField("asset_id", a.ID).Info("asset created")
	writeJSON(w, http.StatusCreated, a)
}

// updateAsset overwrites the supplied fields of an asset
func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	var req models.UpdateAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	a, err := s.Store.Update(r.Context(), id, req)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// deleteAsset handles asset deletion
func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	if err := s.Store.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).WithField("asset_id", id).Info("asset deleted")
	w.WriteHeader(http.StatusNoContent)
}

func writeValidation(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
