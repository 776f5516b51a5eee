package console

import (
	"time"
)

// defaultRequestTimeout applies when the config leaves CONSOLE_REQUEST_TIMEOUT
// unset.
const defaultRequestTimeout = 15 * time.Second

// MountRoutes registers the middleware chain and the console routes.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(NoStoreMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/", s.HandleIndex)
	s.router.Post("/doorbell", s.HandleDoorbell)
	s.router.Post("/token", s.HandleToken)
	s.router.Get("/journal", s.HandleJournal)
	s.router.Get("/health", s.HandleHealth)
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.RequestTimeout > 0 {
		return s.Config.RequestTimeout
	}
	return defaultRequestTimeout
}
