// Package users serves the user administration pages. All precedence
// decisions live in the authz package; handlers only gather the actor and
// target state and enforce the verdict.
package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/actor"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/shared"
	"github.com/aegis-admin/aegis/internal/view"
)

// Handler manages the user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *accounts.Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
	resolver  actor.Resolver
	perPage   int
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *accounts.Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, resolver actor.Resolver, perPage int) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions, resolver: resolver, perPage: perPage}
}

// MountRoutes registers user routes. Everything below requires a login;
// per-target precedence checks happen inside each handler against the
// actor's current roles.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.resolver.RequireAuth)
	r.Get("/", h.listUsers)
	r.Get("/me", h.manage)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.createUser)
	r.Get("/{id}", h.showUser)
	r.Get("/{id}/edit", h.showEditForm)
	r.Post("/{id}", h.updateUser)
	r.Post("/{id}/delete", h.deleteUser)
}

type roleRow struct {
	Name     string
	Checked  bool
	Editable bool
}

type userFormData struct {
	Username  string   `json:"username"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Roles     []string `json:"roles"`
}

type stashedForm struct {
	Form   userFormData `json:"form"`
	Errors []string     `json:"errors"`
}

type listPageData struct {
	Users      []accounts.User
	Pagination shared.Pagination
	AllRoles   []string
	Search     string
	SortBy     string
	SortDir    string
	RoleFilter []string
	CanCreate  bool
	Errors     []string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	query := accounts.ListQuery{
		Search:  r.URL.Query().Get("q"),
		Roles:   r.URL.Query()["role"],
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
		PerPage: h.perPage,
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		query.Page = page
	}

	list, pagination, err := h.service.List(r.Context(), query)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", "Users", listPageData{
			AllRoles: authz.Tiers(),
			Errors:   []string{shared.UserSafeMessage(err)},
		}, http.StatusInternalServerError)
		return
	}

	h.render(w, r, "pages/users/list.html", "Users", listPageData{
		Users:      list,
		Pagination: pagination,
		AllRoles:   authz.Tiers(),
		Search:     query.Search,
		SortBy:     query.SortBy,
		SortDir:    query.SortDir,
		RoleFilter: query.Roles,
		CanCreate:  authz.CanCreateUser(act.Roles),
	}, http.StatusOK)
}

func (h *Handler) manage(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	http.Redirect(w, r, "/users/"+act.ID()+"/edit", http.StatusSeeOther)
}

type formPageData struct {
	Form           userFormData
	RoleRows       []roleRow
	Errors         []string
	TargetID       string
	IsSelf         bool
	CanAssignRoles bool
}

func (h *Handler) roleRows(actorRoles authz.RoleSet, held []string) []roleRow {
	heldSet := authz.NewRoleSet(held...)
	rows := make([]roleRow, 0, len(authz.Tiers()))
	for _, name := range authz.Tiers() {
		rows = append(rows, roleRow{
			Name:     name,
			Checked:  heldSet.Has(name),
			Editable: authz.RoleCheckboxEditable(actorRoles, name),
		})
	}
	return rows
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	if !authz.CanCreateUser(act.Roles) {
		h.renderDenied(w, r)
		return
	}

	data := formPageData{RoleRows: h.roleRows(act.Roles, nil), CanAssignRoles: true}
	// A failed submission survives exactly one redirect back to this
	// page, then is discarded.
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		var stash stashedForm
		if sess.PopForm("create_user", &stash) {
			data.Form = stash.Form
			data.Errors = stash.Errors
			data.RoleRows = h.roleRows(act.Roles, stash.Form.Roles)
		}
	}
	h.render(w, r, "pages/users/form.html", "New User", data, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	if !authz.CanCreateUser(act.Roles) {
		h.renderDenied(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := userFormData{
		Username:  r.PostFormValue("username"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Phone:     r.PostFormValue("phone"),
		Roles:     authz.SelectableRoles(act.Roles, r.Form["roles"]),
	}
	input := accounts.CreateInput{
		Username:  form.Username,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Phone:     form.Phone,
		Password:  r.PostFormValue("password"),
		Roles:     form.Roles,
	}

	if _, err := h.service.Create(r.Context(), input); err != nil {
		h.stashAndRedirect(w, r, "create_user", "/users/new", form, err)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User created.")
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	target, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}
	if !authz.CanViewUser(act.ID(), act.Roles, target.ID.String(), authz.NewRoleSet(target.Roles...)) {
		h.renderDenied(w, r)
		return
	}
	h.render(w, r, "pages/users/detail.html", target.Username, map[string]any{
		"User":      target,
		"CanEdit":   authz.CanEditUser(act.ID(), act.Roles, target.ID.String(), authz.NewRoleSet(target.Roles...)),
		"CanDelete": authz.CanDeleteUser(act.Roles, authz.NewRoleSet(target.Roles...)),
	}, http.StatusOK)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	target, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}
	if !authz.CanEditUser(act.ID(), act.Roles, target.ID.String(), authz.NewRoleSet(target.Roles...)) {
		h.renderDenied(w, r)
		return
	}

	data := formPageData{
		Form: userFormData{
			Username:  target.Username,
			FirstName: target.FirstName,
			LastName:  target.LastName,
			Email:     target.Email,
			Phone:     target.Phone,
			Roles:     target.Roles,
		},
		RoleRows:       h.roleRows(act.Roles, target.Roles),
		TargetID:       target.ID.String(),
		IsSelf:         act.ID() == target.ID.String(),
		CanAssignRoles: authz.CanCreateUser(act.Roles),
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		var stash stashedForm
		if sess.PopForm("edit_user:"+target.ID.String(), &stash) {
			data.Form = stash.Form
			data.Errors = stash.Errors
			data.RoleRows = h.roleRows(act.Roles, stash.Form.Roles)
		}
	}
	h.render(w, r, "pages/users/form.html", "Edit User", data, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	target, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}
	// Re-checked against the actor's current roles, not the roles from
	// page-render time.
	if !authz.CanEditUser(act.ID(), act.Roles, target.ID.String(), authz.NewRoleSet(target.Roles...)) {
		h.renderDenied(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := userFormData{
		Username:  r.PostFormValue("username"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Phone:     r.PostFormValue("phone"),
		Roles:     authz.SelectableRoles(act.Roles, r.Form["roles"]),
	}
	input := accounts.UpdateInput{
		Username:      form.Username,
		FirstName:     form.FirstName,
		LastName:      form.LastName,
		Email:         form.Email,
		Phone:         form.Phone,
		Password:      r.PostFormValue("password"),
		Roles:         form.Roles,
		EditableRoles: authz.SelectableRoles(act.Roles, authz.Tiers()),
	}

	if _, err := h.service.Update(r.Context(), target.ID, input); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
			return
		}
		h.stashAndRedirect(w, r, "edit_user:"+target.ID.String(), "/users/"+target.ID.String()+"/edit", form, err)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User updated.")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())
	target, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}
	if !authz.CanDeleteUser(act.Roles, authz.NewRoleSet(target.Roles...)) {
		h.renderDenied(w, r)
		return
	}

	if err := h.service.Delete(r.Context(), target.ID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.redirectWithFlash(w, r, "/users", "error", "No user was found.")
			return
		}
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User deleted.")
}

// resolveTarget parses the id route parameter and loads the target user.
// A missing user is NotFound, which is distinct from a permission denial.
func (h *Handler) resolveTarget(w http.ResponseWriter, r *http.Request) (*accounts.User, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.redirectWithFlash(w, r, "/users", "error", "No user was found.")
		return nil, false
	}
	target, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.redirectWithFlash(w, r, "/users", "error", "No user was found.")
		} else {
			h.logger.Error("load user", slog.Any("error", err))
			h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		}
		return nil, false
	}
	return target, true
}

func (h *Handler) stashAndRedirect(w http.ResponseWriter, r *http.Request, name, location string, form userFormData, err error) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		stash := stashedForm{Form: form, Errors: shared.Errors(err)}
		if stashErr := sess.StashForm(name, stash); stashErr != nil {
			h.logger.Error("stash form", slog.Any("error", stashErr))
		}
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
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

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
