package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aegis-admin/aegis/internal/shared"
	"github.com/aegis-admin/aegis/internal/view"
)

// Handler wires HTTP endpoints for authentication and password recovery.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/reset", h.showResetRequest)
	r.Post("/reset", h.handleResetRequest)
	r.Get("/reset/confirm", h.showResetForm)
	r.Post("/reset/confirm", h.handleReset)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/login.html", "Login", loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		errs["general"] = "Login failed: Invalid email or password."
	}

	if len(errs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		if err != nil {
			errs["general"] = "Login failed: Invalid email or password."
		} else {
			if sess != nil {
				sess.SetUser(user.ID.String())
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + user.Username})
				expiresAt := time.Now().Add(h.sessionManager.TTL())
				if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
					h.logger.Warn("register session", slog.Any("error", err))
				}
			} else {
				h.logger.Error("session missing during login")
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	form.Password = ""
	h.render(w, r, "pages/login.html", "Login", loginPageData{Form: form, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

type resetRequestData struct {
	Email  string
	Errors map[string]string
}

func (h *Handler) showResetRequest(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/reset_request.html", "Reset Password", resetRequestData{}, http.StatusOK)
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")

	if err := h.service.RequestReset(r.Context(), email); err != nil {
		data := resetRequestData{Email: email, Errors: map[string]string{}}
		if errors.Is(err, shared.ErrNotFound) {
			data.Errors["email"] = "Invalid user email."
		} else {
			h.logger.Error("request reset", slog.Any("error", err))
			data.Errors["general"] = shared.UserSafeMessage(err)
		}
		h.render(w, r, "pages/reset_request.html", "Reset Password", data, http.StatusBadRequest)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "A password reset link has been sent to your email address!"})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

type resetFormData struct {
	Token  string
	Email  string
	Errors map[string]string
}

func (h *Handler) showResetForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	// Keep the token across failed submissions, as query parameters are
	// lost on the form POST.
	if sess := shared.SessionFromContext(r.Context()); sess != nil && token != "" {
		sess.Set("reset_token", token)
	}
	h.render(w, r, "pages/reset_password.html", "Choose a New Password", resetFormData{Token: token}, http.StatusOK)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	rawToken := r.PostFormValue("token")
	if rawToken == "" && sess != nil {
		rawToken = sess.Get("reset_token")
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	data := resetFormData{Token: rawToken, Email: email, Errors: map[string]string{}}

	token, err := uuid.Parse(rawToken)
	if err != nil {
		data.Errors["general"] = "The reset link is invalid or has expired."
		h.render(w, r, "pages/reset_password.html", "Choose a New Password", data, http.StatusBadRequest)
		return
	}

	if err := h.service.Redeem(r.Context(), token, email, password, confirm); err != nil {
		switch {
		case errors.Is(err, shared.ErrPasswordMismatch):
			data.Errors["general"] = "The passwords did not match."
		case errors.Is(err, shared.ErrNotFound):
			data.Errors["general"] = "The reset link is invalid or has expired."
		default:
			data.Errors["general"] = shared.UserSafeMessage(err)
		}
		h.render(w, r, "pages/reset_password.html", "Choose a New Password", data, http.StatusBadRequest)
		return
	}

	if sess != nil {
		sess.Delete("reset_token")
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Your password was reset successfully."})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
