package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aegis-admin/aegis/internal/actor"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/shared"
	"github.com/aegis-admin/aegis/internal/view"
)

// Handler manages the role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	resolver  actor.Resolver
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, resolver actor.Resolver) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, resolver: resolver}
}

// MountRoutes registers role routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.resolver.RequireAuth)
	r.Get("/", h.listRoles)
	r.Get("/{id}/members", h.showMembers)
	r.Post("/{id}/members", h.updateMembers)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	if !authz.CanViewRoles(act.Roles) {
		h.renderDenied(w, r)
		return
	}

	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/list.html", "Roles", map[string]any{"Roles": roles}, http.StatusOK)
}

func (h *Handler) showMembers(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	membership, ok := h.resolveMembership(w, r, act)
	if !ok {
		return
	}
	h.render(w, r, "pages/roles/members.html", membership.Role.Name+" Members", membership, http.StatusOK)
}

func (h *Handler) updateMembers(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	membership, ok := h.resolveMembership(w, r, act)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	addIDs := parseIDs(r.Form["add_ids"])
	removeIDs := parseIDs(r.Form["remove_ids"])

	if err := h.service.UpdateMembers(r.Context(), membership.Role.ID, addIDs, removeIDs); err != nil {
		h.logger.Error("update role members", slog.Any("error", err))
		current, ok := h.resolveMembership(w, r, act)
		if !ok {
			return
		}
		current.Errors = shared.Errors(err)
		h.render(w, r, "pages/roles/members.html", membership.Role.Name+" Members", current, http.StatusBadRequest)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Role membership updated."})
	}
	http.Redirect(w, r, "/roles/"+strconv.FormatInt(membership.Role.ID, 10)+"/members", http.StatusSeeOther)
}

// resolveMembership loads the role and its member split, and enforces the
// per-role management rule. An unknown role is NotFound, which is distinct
// from a permission denial on a real one.
func (h *Handler) resolveMembership(w http.ResponseWriter, r *http.Request, act *actor.Actor) (*Membership, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	membership, err := h.service.Members(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
		} else {
			h.logger.Error("load role members", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return nil, false
	}
	if !authz.CanManageRoleMembers(act.Roles, membership.Role.Name) {
		h.renderDenied(w, r)
		return nil, false
	}
	return membership, true
}

func parseIDs(values []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if id, err := uuid.Parse(v); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *Handler) renderDenied(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/denied.html", "Access Denied", nil, http.StatusForbidden)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: title, CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}
