package httpapi

import (
	"net/http"
	"time"

	"peterboroughtenants.org/internal/audit"
	"peterboroughtenants.org/internal/cms"
	"peterboroughtenants.org/internal/member"
)

func (a *API) handlePageList(w http.ResponseWriter, r *http.Request) {
	p, _ := member.PrincipalFromContext(r.Context())
	pages, err := a.deps.Pages.List(r.Context(), r.URL.Query().Get("category"), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, pages, "view")
}

func (a *API) handlePageGet(w http.ResponseWriter, r *http.Request) {
	page, err := a.deps.Pages.Get(r.Context(), r.PathValue("slug"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, page, "view")
}

type pageRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Body        string `json:"body"`
	Category    string `json:"category"`
	Archived    bool   `json:"archived"`
	PublishOn   string `json:"publish_on"` // RFC 3339, empty keeps the page a draft
}

func (a *API) pageFromRequest(w http.ResponseWriter, r *http.Request) (*cms.Page, bool) {
	var req pageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}
	page := &cms.Page{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		Category:    req.Category,
		Archived:    req.Archived,
	}
	if req.PublishOn != "" {
		ts, err := time.Parse(time.RFC3339, req.PublishOn)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "publish_on must be RFC 3339")
			return nil, false
		}
		page.PublishOn = ts
	}
	return page, true
}

func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (*member.Principal, bool) {
	p, ok := member.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	if err := a.deps.Eval.HasRole(p, member.RoleGlobalAdmin, nil); err != nil {
		handleError(w, r, err)
		return nil, false
	}
	return p, true
}

func (a *API) handlePageCreate(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	page, ok := a.pageFromRequest(w, r)
	if !ok {
		return
	}
	created, err := a.deps.Pages.Create(r.Context(), page)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "page.created", map[string]any{"slug": created.Slug})
	setMedia(r, http.StatusCreated, created, "view")
}

func (a *API) handlePageUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	page, ok := a.pageFromRequest(w, r)
	if !ok {
		return
	}
	page.Slug = r.PathValue("slug")
	updated, err := a.deps.Pages.Update(r.Context(), page)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "page.updated", map[string]any{"slug": updated.Slug})
	setMedia(r, http.StatusOK, updated, "view")
}
