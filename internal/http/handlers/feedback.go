package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/vantage/server/internal/auth"
	"github.com/vantage/server/internal/repo"
)

// FeedbackHandler handles the contact form: the submission is stored, then an
// admin notification goes out through the mail dispatcher without blocking the
// response.
type FeedbackHandler struct {
	feedback   repo.FeedbackRepo
	mailer     auth.Mailer
	adminEmail string
	validate   *validator.Validate
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedback repo.FeedbackRepo, mailer auth.Mailer, adminEmail string) *FeedbackHandler {
	return &FeedbackHandler{
		feedback:   feedback,
		mailer:     mailer,
		adminEmail: adminEmail,
		validate:   validator.New(),
	}
}

type contactRequest struct {
	Name    string  `json:"name" validate:"required,max=128"`
	Email   string  `json:"email" validate:"required,email"`
	Subject *string `json:"subject" validate:"omitempty,max=256"`
	Message string  `json:"message" validate:"required,max=4096"`
}

// HandleContact handles POST /api/contact
func (h *FeedbackHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "name, a valid email, and a message are required"})
		return
	}

	if _, err := h.feedback.Create(r.Context(), req.Name, req.Email, req.Subject, req.Message); err != nil {
		logMasked(req.Email, "store feedback", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
		return
	}

	if h.adminEmail != "" {
		subject := "No Subject"
		if req.Subject != nil && *req.Subject != "" {
			subject = *req.Subject
		}
		h.mailer.Enqueue(h.adminEmail, "New Feedback: "+subject, feedbackBody(req))
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

func feedbackBody(req contactRequest) string {
	subject := "N/A"
	if req.Subject != nil && *req.Subject != "" {
		subject = *req.Subject
	}
	return fmt.Sprintf(
		"New feedback received:\n\nName: %s\nEmail: %s\nSubject: %s\n\nMessage:\n%s\n",
		req.Name, req.Email, subject, req.Message)
}
