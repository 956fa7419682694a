package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/echoes-backend/internal/metrics"
	"github.com/AnshRaj112/echoes-backend/internal/models"
	"github.com/AnshRaj112/echoes-backend/internal/services"
	"github.com/AnshRaj112/echoes-backend/pkg/validator"
)

type HomeResponse struct {
	Success       bool   `json:"success"`
	App           string `json:"app"`
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
}

type ForgotPasswordResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Home greets the visitor, by name when a session is present.
func Home(w http.ResponseWriter, r *http.Request) {
	resp := HomeResponse{Success: true, App: "Echoes"}
	if sess, _, ok := services.SessionFromRequest(r.Context(), r); ok {
		resp.Authenticated = true
		resp.Name = sess.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormPage{Success: true, Form: "login", Action: "/login", Fields: []string{"email", "password"}})
}

// Login checks credentials, opens a session and redirects to the dashboard.
func Login(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req := loginRequest{Email: fields.Get("email"), Password: fields.Get("password")}
	req.Email = services.NormalizeEmail(req.Email)
	if err := validator.ValidateStruct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := services.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, models.ErrInvalidCredentials) {
		metrics.RecordAuthEvent("login_failed")
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		serverError(w, r, err, "login failed")
		return
	}

	token, err := services.CreateSession(r.Context(), user.ID, user.Name)
	if err != nil {
		serverError(w, r, err, "failed to create session")
		return
	}
	if err := services.SetSessionCookie(w, token); err != nil {
		serverError(w, r, err, "failed to sign session cookie")
		return
	}

	metrics.RecordAuthEvent("login_success")
	logrus.WithField("user_id", user.ID).Info("user logged in")
	redirect(w, r, "/dashboard")
}

func SignupPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormPage{Success: true, Form: "signup", Action: "/signup", Fields: []string{"name", "email", "password"}})
}

// Signup creates an account and sends the user to the login page.
func Signup(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req := signupRequest{
		Name:     fields.Get("name"),
		Email:    services.NormalizeEmail(fields.Get("email")),
		Password: fields.Get("password"),
	}
	if err := validator.ValidateStruct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := services.Signup(r.Context(), req.Name, req.Email, req.Password)
	if errors.Is(err, models.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, "Email already exists")
		return
	}
	if err != nil {
		serverError(w, r, err, "signup failed")
		return
	}

	metrics.RecordAuthEvent("signup")
	logrus.WithField("user_id", user.ID).Info("user signed up")
	redirect(w, r, "/login")
}

func ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormPage{Success: true, Form: "forgot_password", Action: "/forgot-password", Fields: []string{"email"}})
}

// ForgotPassword issues a reset code. There is no mail delivery, so the code is returned in the response.
func ForgotPassword(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req := forgotPasswordRequest{Email: services.NormalizeEmail(fields.Get("email"))}
	if err := validator.ValidateStruct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	rc, err := services.ForgotPassword(r.Context(), req.Email)
	if errors.Is(err, models.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "No account with that email")
		return
	}
	if err != nil {
		serverError(w, r, err, "failed to issue reset code")
		return
	}

	metrics.RecordAuthEvent("reset_requested")
	writeJSON(w, http.StatusOK, ForgotPasswordResponse{
		Success:   true,
		Message:   "Use this code to reset your password",
		Email:     rc.Email,
		Code:      rc.Code,
		ExpiresAt: rc.ExpiresAt,
	})
}

func ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	writeJSON(w, http.StatusOK, FormPage{Success: true, Form: "reset_password", Action: "/reset-password/" + email, Fields: []string{"code", "password"}})
}

// ResetPassword swaps the password when the code matches and sends the user to the login page.
func ResetPassword(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req := resetPasswordRequest{
		Email:    services.NormalizeEmail(chi.URLParam(r, "email")),
		Code:     strings.TrimSpace(fields.Get("code")),
		Password: fields.Get("password"),
	}
	if err := validator.ValidateStruct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	err = services.ResetPassword(r.Context(), req.Email, req.Code, req.Password)
	if errors.Is(err, models.ErrInvalidCode) {
		metrics.RecordAuthEvent("reset_failed")
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
		return
	}
	if err != nil {
		serverError(w, r, err, "password reset failed")
		return
	}

	metrics.RecordAuthEvent("reset_success")
	redirect(w, r, "/login")
}

// Logout drops the session, if any, and clears the cookie.
func Logout(w http.ResponseWriter, r *http.Request) {
	if _, token, _ := services.SessionFromRequest(r.Context(), r); token != "" {
		if err := services.InvalidateSession(r.Context(), token); err != nil {
			logrus.WithError(err).Warn("failed to invalidate session on logout")
		}
	}
	services.ClearSessionCookie(w)
	redirect(w, r, "/login")
}
