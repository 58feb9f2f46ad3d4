package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kassandra-app/kassandra/internal/auth"
	"github.com/kassandra-app/kassandra/internal/core"
	"github.com/kassandra-app/kassandra/internal/guidance"
	"github.com/kassandra-app/kassandra/internal/httputil"
	"github.com/kassandra-app/kassandra/internal/logging"
	"github.com/kassandra-app/kassandra/internal/ratelimit"
)

// Handler contains the HTTP handlers for the quiz flow
type Handler struct {
	engine      *core.Engine
	authService *auth.Service
	generator   guidance.Generator
	rateLimiter *ratelimit.Limiter
	logger      *logging.Logger
}

func NewHandler(engine *core.Engine, authService *auth.Service, generator guidance.Generator, rateLimiter *ratelimit.Limiter, logger *logging.Logger) *Handler {
	return &Handler{
		engine:      engine,
		authService: authService,
		generator:   generator,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// AnswerRequest submits a choice for a question
type AnswerRequest struct {
	QuestionID int64 `json:"question_id"`
	ChoiceID   int64 `json:"choice_id"`
}

// UpgradeRequest promotes the session user to a registered account. The
// optional secret becomes the credential for the email login strategy.
type UpgradeRequest struct {
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	Secret           string `json:"secret,omitempty"`
	SubscribedWeekly bool   `json:"subscribed_weekly"`
}

// LoginRequest authenticates via the configured strategy
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret,omitempty"`
}

// NextQuestionResponse wraps the next question; Complete is true and
// Question nil once every catalog question has an answer.
type NextQuestionResponse struct {
	Complete bool `json:"complete"`
	Question any  `json:"question,omitempty"`
}

// Session returns the resolved session user
// @Summary      Resolve session
// @Description  Returns the user bound to the session cookie, creating an anonymous identity on first contact.
// @Tags         session
// @Produce      json
// @Success      200 {object} identity.User
// @Router       /session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no session", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	httputil.RespondJSON(w, user, http.StatusOK)
}

// NextQuestion returns the first unanswered question for the session user
// @Summary      Next question
// @Tags         quiz
// @Produce      json
// @Success      200 {object} NextQuestionResponse
// @Router       /quiz/next [get]
func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no session", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	question, err := h.engine.NextQuestion(r.Context(), user.ID)
	if err != nil {
		httputil.RespondAppError(w, err)
		return
	}

	if question == nil {
		httputil.RespondJSON(w, NextQuestionResponse{Complete: true}, http.StatusOK)
		return
	}

	httputil.RespondJSON(w, NextQuestionResponse{Question: question}, http.StatusOK)
}

// Questions returns the full question catalog in order
// @Summary      List questions
// @Tags         quiz
// @Produce      json
// @Success      200 {array} catalog.Question
// @Router       /quiz/questions [get]
func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.engine.ListQuestions(r.Context())
	if err != nil {
		httputil.RespondAppError(w, err)
		return
	}

	httputil.RespondJSON(w, questions, http.StatusOK)
}

// RecordAnswer submits or overwrites an answer
// @Summary      Record answer
// @Tags         quiz
// @Accept       json
// @Param        request body AnswerRequest true "Answer"
// @Success      204
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /quiz/answer [post]
func (h *Handler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no session", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeValidation, http.StatusBadRequest)
		return
	}

	if err := h.engine.RecordAnswer(r.Context(), user.ID, req.QuestionID, req.ChoiceID); err != nil {
		httputil.RespondAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Guidance returns the current daily guidance, generating one when the
// cooldown has elapsed
// @Summary      Daily guidance
// @Tags         guidance
// @Produce      json
// @Success      200 {object} guidance.Guidance
// @Failure      429 {object} httputil.ErrorResponse
// @Router       /guidance [post]
func (h *Handler) Guidance(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	user, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no session", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	// Rate limit by IP; generation may be expensive
	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "guidance")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for guidance", "ip", ip)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	g, err := h.engine.GetOrGenerateGuidance(r.Context(), user.ID, h.generator)
	if err != nil {
		httputil.RespondAppError(w, err)
		return
	}

	httputil.RespondJSON(w, g, http.StatusOK)
}

// Upgrade registers the session user
// @Summary      Upgrade to registered
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        request body UpgradeRequest true "Registration details"
// @Success      200 {object} identity.User
// @Failure      409 {object} httputil.ErrorResponse "Email already claimed"
// @Router       /account/upgrade [post]
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no session", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	var req UpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeValidation, http.StatusBadRequest)
		return
	}

	upgraded, err := h.engine.UpgradeToRegistered(r.Context(), user.ID, req.Email, req.DisplayName, req.Secret, req.SubscribedWeekly)
	if err != nil {
		httputil.RespondAppError(w, err)
		return
	}

	httputil.RespondJSON(w, upgraded, http.StatusOK)
}

// Login authenticates via the configured strategy and returns an access token
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} map[string]any
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "login")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for login", "ip", ip)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeValidation, http.StatusBadRequest)
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httputil.RespondErrorWithCode(w, "invalid credentials", httputil.CodeUnauthorized, http.StatusUnauthorized)
			return
		}
		httputil.RespondAppError(w, err)
		return
	}

	httputil.RespondJSON(w, map[string]any{
		"user":         user,
		"access_token": token,
		"token_type":   "Bearer",
	}, http.StatusOK)
}
