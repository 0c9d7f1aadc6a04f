package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/polisai/shelf/pkg/auth"
	"github.com/polisai/shelf/pkg/catalog"
	"github.com/polisai/shelf/pkg/domain"
	"github.com/polisai/shelf/pkg/rotation"
)

const (
	maxBodyBytes   = 1 << 16
	refreshTimeout = 30 * time.Second
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Health())
}

func (s *Server) widget(w http.ResponseWriter, r *http.Request) (Widget, bool) {
	name := r.PathValue("widget")
	widget, ok := s.widgets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "widget_not_found", "unknown widget "+strconv.Quote(name))
		return nil, false
	}
	return widget, true
}

// handleWidget renders the widget. Load failures are reported in the body, never as 5xx.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, widget.Render(r.URL.Query().Get("category")))
}

// CategoriesResponse is the body of GET /api/{widget}/categories.
type CategoriesResponse struct {
	Options []domain.Category `json:"options,omitempty"`
	Present []string          `json:"present"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Options: s.opts.Categories[widget.Name()],
		Present: widget.Categories(),
	})
}

type selectCategoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleSelectCategory(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	var req selectCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	widget.SelectCategory(req.Category)
	writeJSON(w, http.StatusOK, widget.Render(""))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	// A dropped client must not abandon a load other viewers will see.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), refreshTimeout)
	defer cancel()
	err := widget.Load(ctx)
	switch {
	case errors.Is(err, catalog.ErrSuperseded):
		s.logger.Debug("Refresh superseded by a newer load", "widget", widget.Name())
	case err != nil:
		s.logger.Warn("Refresh failed", "widget", widget.Name(), "error", err)
	}
	writeJSON(w, http.StatusOK, widget.Render(""))
}

// TestimonialResponse is the body of the testimonial endpoints.
type TestimonialResponse struct {
	Item    *domain.Testimonial `json:"item,omitempty"`
	State   rotation.State      `json:"state"`
	Running bool                `json:"running"`
}

func (s *Server) testimonialResponse() TestimonialResponse {
	item, state, ok := s.opts.Testimonials.Current()
	resp := TestimonialResponse{State: state, Running: s.opts.Testimonials.Running()}
	if ok {
		resp.Item = &item
	}
	return resp
}

func (s *Server) requireTestimonials(w http.ResponseWriter) bool {
	if s.opts.Testimonials == nil {
		writeError(w, http.StatusNotFound, "widget_not_found", "testimonials are not configured")
		return false
	}
	return true
}

func (s *Server) handleTestimonial(w http.ResponseWriter, _ *http.Request) {
	if !s.requireTestimonials(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.testimonialResponse())
}

func (s *Server) handleTestimonialAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !s.requireTestimonials(w) {
			return
		}
		c := s.opts.Testimonials
		switch action {
		case "next":
			c.Next()
		case "prev":
			c.Prev()
		case "pause":
			c.Pause()
		case "resume":
			c.Resume()
		}
		writeJSON(w, http.StatusOK, s.testimonialResponse())
	}
}

func (s *Server) handleTestimonialGoTo(w http.ResponseWriter, r *http.Request) {
	if !s.requireTestimonials(w) {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
		return
	}
	if _, err := s.opts.Testimonials.GoTo(index); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_index", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.testimonialResponse())
}

// handleTestimonialKey maps keyboard arrows to navigation; other keys are ignored.
func (s *Server) handleTestimonialKey(w http.ResponseWriter, r *http.Request) {
	if !s.requireTestimonials(w) {
		return
	}
	switch r.PathValue("key") {
	case "ArrowLeft":
		s.opts.Testimonials.Prev()
	case "ArrowRight":
		s.opts.Testimonials.Next()
	}
	writeJSON(w, http.StatusOK, s.testimonialResponse())
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleAuth(mode auth.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Auth == nil {
			writeError(w, http.StatusNotFound, "auth_disabled", "no identity provider configured")
			return
		}
		var creds credentials
		if err := decodeBody(r, &creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}

		form := auth.NewForm(s.opts.Auth, auth.WithMetrics(s.opts.Metrics), auth.WithLogger(s.logger))
		result := form.SubmitAs(r.Context(), mode, creds.Email, creds.Password)
		writeJSON(w, authStatus(result, mode), result)
	}
}

func authStatus(result auth.Result, mode auth.Mode) int {
	if result.OK {
		if mode == auth.ModeRegister {
			return http.StatusCreated
		}
		return http.StatusOK
	}
	switch result.Code {
	case auth.CodeInvalidCredential:
		return http.StatusUnauthorized
	case auth.CodeEmailInUse:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, domain.ErrorResponse{Code: code, Message: message})
}
