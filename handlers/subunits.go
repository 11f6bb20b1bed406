// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/catalog"
	"github.com/danielhkuo/quickly-survey/compiler"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/middleware"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/schema"
)

type SubunitHandler struct {
	subunits *registry.Store
	compiler *compiler.Compiler
	builder  *catalog.Builder
}

func NewSubunitHandler(conn *db.Conn, comp *compiler.Compiler) *SubunitHandler {
	return &SubunitHandler{
		subunits: registry.NewStore(conn),
		compiler: comp,
		builder:  catalog.NewBuilder(conn),
	}
}

// Register handles POST /projects/{id}/subunits
func (h *SubunitHandler) Register(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req models.RegisterSubunitRequest
	if !middleware.BindJSON(w, r, &req) {
		return
	}

	doc, raw, err := schema.FromMap(req.Schema)
	if err != nil {
		writeError(w, err, "Invalid schema")
		return
	}

	project, err := h.subunits.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Project not found")
			return
		}
		writeError(w, err, "Failed to load project")
		return
	}

	var createdBy *string
	if actor, ok := auth.ActorFrom(r.Context()); ok {
		createdBy = &actor.ID
	}

	su, err := h.subunits.CreateSubunit(r.Context(), registry.NewSubunit{
		ProjectID:      project.ID,
		Name:           req.Name,
		Acronym:        req.Acronym,
		Description:    req.Description,
		Version:        req.Version,
		HaveQC:         req.HaveQC,
		HaveValidation: req.HaveValidation,
		Schema:         raw,
		CreatedBy:      createdBy,
	})
	if err != nil {
		writeError(w, err, "Failed to create subunit")
		return
	}

	slog.Info("subunit created", "subunit_id", su.ID, "project", project.Acronym, "acronym", su.Acronym)

	resp, err := h.compile(r.Context(), su, project, doc)
	if err != nil {
		writeError(w, err, "Failed to compile schema")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// Compile handles POST /subunits/{id}/compile. It retries compilation of
// the stored schema, typically after a failed registration.
func (h *SubunitHandler) Compile(w http.ResponseWriter, r *http.Request) {
	su, project, err := h.subunits.GetSubunitWithProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, "Failed to load subunit")
		return
	}

	resp, err := h.compile(r.Context(), su, project, su.Schema)
	if err != nil {
		writeError(w, err, "Failed to compile schema")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// compile creates the subunit's tables, builds its catalog and activates it
func (h *SubunitHandler) compile(ctx context.Context, su *models.Subunit, project *models.Project, doc models.SchemaDocument) (*models.RegisterSubunitResponse, error) {
	res, err := h.compiler.Register(ctx, compiler.Target{
		SubunitID:      su.ID,
		ProjectAcronym: project.Acronym,
		SubunitAcronym: su.Acronym,
	}, doc)
	if err != nil {
		return nil, err
	}

	if _, err := h.builder.Build(ctx, su.ID); err != nil {
		return nil, err
	}
	if err := h.subunits.SetActive(ctx, su.ID, true); err != nil {
		return nil, err
	}

	updated, err := h.subunits.GetSubunit(ctx, su.ID)
	if err != nil {
		return nil, err
	}
	return &models.RegisterSubunitResponse{
		Subunit:  *updated,
		Tables:   res.Tables,
		Mappings: res.Mappings,
	}, nil
}

// Get handles GET /subunits/{id}
func (h *SubunitHandler) Get(w http.ResponseWriter, r *http.Request) {
	su, err := h.subunits.GetSubunit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, "Failed to load subunit")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, su)
}

// Mappings handles GET /subunits/{id}/mappings
func (h *SubunitHandler) Mappings(w http.ResponseWriter, r *http.Request) {
	subunitID := r.PathValue("id")
	if _, err := h.subunits.GetSubunit(r.Context(), subunitID); err != nil {
		writeError(w, err, "Failed to load subunit")
		return
	}

	tree, err := h.compiler.Mappings(r.Context(), subunitID)
	if err != nil {
		writeError(w, err, "Failed to load mappings")
		return
	}

	mappings := tree.Nodes
	if mappings == nil {
		mappings = []models.TableMapping{}
	}
	middleware.JSONResponse(w, http.StatusOK, models.MappingsResponse{
		SubunitID: subunitID,
		Mappings:  mappings,
	})
}
