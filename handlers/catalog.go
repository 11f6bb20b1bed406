// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickly-survey/catalog"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/middleware"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/schema"
)

type CatalogHandler struct {
	conn     *db.Conn
	subunits *registry.Store
	builder  *catalog.Builder
}

func NewCatalogHandler(conn *db.Conn) *CatalogHandler {
	return &CatalogHandler{
		conn:     conn,
		subunits: registry.NewStore(conn),
		builder:  catalog.NewBuilder(conn),
	}
}

// Build handles POST /subunits/{id}/catalog/build. A subunit whose
// compile committed (its ledger table exists) is reactivated once the
// catalog is in place.
func (h *CatalogHandler) Build(w http.ResponseWriter, r *http.Request) {
	subunitID := r.PathValue("id")

	stats, err := h.builder.Build(r.Context(), subunitID)
	if err != nil {
		writeError(w, err, "Failed to build catalog")
		return
	}

	su, project, err := h.subunits.GetSubunitWithProject(r.Context(), subunitID)
	if err != nil {
		writeError(w, err, "Failed to load subunit")
		return
	}
	compiled, err := h.conn.TableExists(r.Context(), schema.LedgerTableName(project.Acronym, su.Acronym))
	if err != nil {
		writeError(w, err, "Failed to check subunit tables")
		return
	}
	if compiled && !su.Active {
		if err := h.subunits.SetActive(r.Context(), subunitID, true); err != nil {
			writeError(w, err, "Failed to activate subunit")
			return
		}
		su.Active = true
	}

	middleware.JSONResponse(w, http.StatusOK, models.BuildCatalogResponse{
		SubunitID:   subunitID,
		Questions:   stats.Questions,
		Validations: stats.Validations,
		SkipLogic:   stats.SkipLogic,
		Conditions:  stats.Conditions,
		Active:      su.Active,
	})
}

// Get handles GET /subunits/{id}/catalog
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	subunitID := r.PathValue("id")
	if _, err := h.subunits.GetSubunit(r.Context(), subunitID); err != nil {
		writeError(w, err, "Failed to load subunit")
		return
	}

	cat, err := catalog.Load(r.Context(), h.conn, subunitID)
	if err != nil {
		writeError(w, err, "Failed to load catalog")
		return
	}

	questions := cat.Questions
	if questions == nil {
		questions = []models.Question{}
	}
	middleware.JSONResponse(w, http.StatusOK, models.CatalogResponse{
		SubunitID: subunitID,
		Questions: questions,
	})
}
