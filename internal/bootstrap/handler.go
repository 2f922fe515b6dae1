package bootstrap

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aegis-admin/aegis/internal/shared"
	"github.com/aegis-admin/aegis/internal/view"
)

// Handler serves the one-time setup page.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers the setup routes. Once a SuperAdmin exists the
// routes respond 404, indistinguishable from a page that never existed.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showSetup)
	r.Post("/", h.handleSetup)
}

type setupForm struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
}

type setupPageData struct {
	Form   setupForm
	Errors []string
}

func (h *Handler) showSetup(w http.ResponseWriter, r *http.Request) {
	if !h.service.Available(r.Context()) {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, setupPageData{}, http.StatusOK)
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	if !h.service.Available(r.Context()) {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := setupForm{
		Username:  r.PostFormValue("username"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
	}
	input := Input{
		Username:  form.Username,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  r.PostFormValue("password"),
	}

	user, err := h.service.CreateFirstAdmin(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			http.NotFound(w, r)
			return
		}
		h.render(w, r, setupPageData{Form: form, Errors: shared.Errors(err)}, http.StatusBadRequest)
		return
	}

	h.logger.Info("first administrator created", slog.String("username", user.Username))
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Administrator account created. Please log in."})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data setupPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Setup", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/setup.html", viewData); err != nil {
		h.logger.Error("render template", slog.String("template", "pages/setup.html"), slog.Any("error", err))
	}
}
