package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/models"
)

// Handler serves the platform API under /api from an in-memory Backend.
type Handler struct {
	router  *chi.Mux
	backend *Backend
	tokens  *TokenIssuer
	logger  zerolog.Logger
	// exposeCodes echoes verification codes back to the caller.
	exposeCodes bool
}

func NewHandler(backend *Backend, tokens *TokenIssuer, exposeCodes bool, logger zerolog.Logger) *Handler {
	h := &Handler{
		router:      chi.NewRouter(),
		backend:     backend,
		tokens:      tokens,
		logger:      logger,
		exposeCodes: exposeCodes,
	}

	h.setupRoutes()
	return h
}

func (h *Handler) setupRoutes() {
	h.router.Get("/health", h.HealthCheck)

	h.router.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/token/refresh", h.RefreshToken)
			r.Post("/verification/code", h.RequestCode)
			r.Post("/verification/code/confirm", h.ConfirmCode)

			r.With(Authenticate(h.tokens)).Get("/profile", h.GetProfile)
			r.With(Authenticate(h.tokens)).Put("/profile", h.UpdateProfile)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(Authenticate(h.tokens))
			r.Get("/", h.ListAnnouncements)
			r.Post("/", h.CreateAnnouncement)
			r.Put("/{id}", h.UpdateAnnouncement)
			r.Delete("/{id}", h.DeleteAnnouncement)
		})

		r.Route("/questionnaire/results", func(r chi.Router) {
			r.Use(Authenticate(h.tokens))
			r.Get("/", h.ListResults)
			r.Get("/{id}", h.GetResult)
		})
	})
}

func (h *Handler) GetRouter() *chi.Mux {
	return h.router
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "majorrec-mock-api",
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.backend.Register(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	access, refresh, err := h.tokens.Pair(user.ID, string(user.Role))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := models.RegisterResponse{
		Access:  access,
		Refresh: refresh,
		Message: "Account created successfully.",
	}
	if h.exposeCodes {
		code, err := h.backend.IssueCode(user.Email)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.DevVerificationCode = code
	}

	loggerFrom(r.Context()).Info().Int64("user_id", user.ID).Msg("User registered")
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.backend.Authenticate(req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	access, refresh, err := h.tokens.Pair(user.ID, string(user.Role))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Access: access, Refresh: refresh, User: &user})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	claims, err := h.tokens.Parse(req.Refresh, tokenTypeRefresh)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	access, refresh, err := h.tokens.Pair(claims.UserID, claims.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RefreshResponse{Access: access, Refresh: refresh})
}

func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if !decode(w, r, &req) {
		return
	}

	code, err := h.backend.IssueCode(req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := map[string]string{"detail": "Verification code has been sent to your email."}
	if h.exposeCodes {
		resp["dev_verification_code"] = code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyCodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.backend.ConfirmCode(req.Email, req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail("Verification successful."))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.backend.User(claimsFrom(r.Context()).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	if !decode(w, r, &update) {
		return
	}

	user, err := h.backend.UpdateProfile(claimsFrom(r.Context()).UserID, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.Announcements())
}

func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if claims.Role != string(models.RoleExpert) && claims.Role != string(models.RoleAdmin) {
		h.writeError(w, r, errForbidden)
		return
	}

	var input models.AnnouncementInput
	if !decode(w, r, &input) {
		return
	}

	a, err := h.backend.CreateAnnouncement(claims.UserID, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	editor, err := h.backend.User(claimsFrom(r.Context()).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var input models.AnnouncementInput
	if !decode(w, r, &input) {
		return
	}

	a, err := h.backend.UpdateAnnouncement(models.AnnouncementID(chi.URLParam(r, "id")), editor, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	editor, err := h.backend.User(claimsFrom(r.Context()).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.backend.DeleteAnnouncement(models.AnnouncementID(chi.URLParam(r, "id")), editor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.Results(claimsFrom(r.Context()).UserID))
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, r, errNotFound)
		return
	}

	result, err := h.backend.Result(claimsFrom(r.Context()).UserID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields FieldErrors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusBadRequest, fields)
	case errors.Is(err, errNotFound):
		writeJSON(w, http.StatusNotFound, detail("Not found."))
	case errors.Is(err, errForbidden):
		writeJSON(w, http.StatusForbidden, detail("You do not have permission to perform this action."))
	default:
		loggerFrom(r.Context()).Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, detail("A server error occurred."))
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error - "+err.Error()))
		return false
	}
	return true
}

func detail(message string) map[string]string {
	return map[string]string{"detail": message}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
