// Package api exposes the HTTP and WebSocket surface of the voice club:
// cookie-based auth, session lifecycle, the hand-raise queue, and the live
// room transport.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/fomovoice/voice-club/internal/config"
	"github.com/fomovoice/voice-club/internal/database"
	"github.com/fomovoice/voice-club/internal/handraise"
	"github.com/fomovoice/voice-club/internal/server"
)

type ClubApp struct {
	log            *log.Logger
	db             database.ClubRepository
	mux            *http.Server
	rooms          *server.RoomManager
	queue          *handraise.Service
	signingKey     []byte
	allowedOrigins []string

	// overridable in tests
	generateShortId func() (string, error)
}

func NewClubApp(mux *http.ServeMux, logger *log.Logger, rooms *server.RoomManager, queue *handraise.Service, db database.ClubRepository, cfg *config.Config) *ClubApp {
	s := &ClubApp{
		log:             logger,
		db:              db,
		rooms:           rooms,
		queue:           queue,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/account", s.authMiddleware(s.account))
	mux.HandleFunc("POST /api/sessions", s.authMiddleware(s.createSession))
	mux.HandleFunc("GET /api/sessions", s.authMiddleware(s.listSessions))
	mux.HandleFunc("GET /api/sessions/{id}", s.authMiddleware(s.getSession))
	mux.HandleFunc("POST /api/sessions/{id}/start", s.authMiddleware(s.startSession))
	mux.HandleFunc("POST /api/sessions/{id}/end", s.authMiddleware(s.endSession))
	mux.HandleFunc("GET /api/sessions/{id}/room", s.authMiddleware(s.roomState))
	mux.HandleFunc("POST /api/sessions/{id}/hand-raise", s.authMiddleware(s.raiseHand))
	mux.HandleFunc("DELETE /api/sessions/{id}/hand-raise", s.authMiddleware(s.lowerHand))
	mux.HandleFunc("GET /api/sessions/{id}/queue", s.authMiddleware(s.getQueue))
	mux.HandleFunc("POST /api/sessions/{id}/queue/{handRaiseId}/approve", s.authMiddleware(s.approveHandRaise))
	mux.HandleFunc("POST /api/sessions/{id}/queue/{handRaiseId}/end-speech", s.authMiddleware(s.endSpeech))
	mux.HandleFunc("GET /api/sessions/{id}/speaker", s.authMiddleware(s.currentSpeaker))
	mux.HandleFunc("GET /api/users/{id}/hand-raises", s.authMiddleware(s.handRaiseHistory))
	mux.HandleFunc("GET /ws/{id}", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ClubApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ClubApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
