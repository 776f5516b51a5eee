// Package console serves the operator's doorbell console: an HTML page (and
// matching JSON endpoints) to send DoorbellPress events to the Alexa Event
// Gateway and to renew the LWA access token those events are signed with.
// Every outcome is appended to an in-memory journal shown on the page.
package console

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"kvsdoorbell/internal/config"
	"kvsdoorbell/internal/external"
	"kvsdoorbell/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the collaborators of the console.
type Deps struct {
	Events external.EventSender
	Tokens external.TokenRefresher
	Logger *slog.Logger
	Clock  types.Clock
}

// Server holds the console's dependencies and router.
type Server struct {
	Config  *config.ConsoleConfig
	Logger  *slog.Logger
	Journal *Journal

	events   external.EventSender
	tokens   external.TokenRefresher
	clock    types.Clock
	validate *validator.Validate
	page     *template.Template

	mu        sync.Mutex
	lastToken *external.Token

	router *chi.Mux
}

// NewServer validates deps and prepares the router. Routes are registered by
// MountRoutes.
func NewServer(cfg *config.ConsoleConfig, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event sender must not be nil")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token refresher must not be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}

	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing console template: %w", err)
	}

	return &Server{
		Config:   cfg,
		Logger:   deps.Logger,
		Journal:  NewJournal(cfg.JournalSize),
		events:   deps.Events,
		tokens:   deps.Tokens,
		clock:    deps.Clock,
		validate: newFormValidator(),
		page:     page,
		router:   chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// LastToken returns the most recently renewed token, or nil.
func (s *Server) LastToken() *external.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastToken
}

func (s *Server) setLastToken(t *external.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastToken = t
}

func (s *Server) record(c Channel, level Level, text string) Entry {
	e := Entry{Time: s.clock.Now(), Level: level, Channel: c, Text: text}
	s.Journal.Append(e)
	return e
}
