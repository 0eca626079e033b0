// Package web is the driving HTTP adapter: a JSON API plus a websocket
// event channel, routing requests into the session registry, content store,
// payment gate and authorship verifier.
package web

import (
	"net/http"

	"boltboard/internal/logging"
	"boltboard/internal/server/authorship"
	"boltboard/internal/server/nodes"
	"boltboard/internal/server/payments"
	"boltboard/internal/server/posts"

	"github.com/rs/cors"
)

type Server struct {
	nodes    *nodes.Manager
	posts    *posts.Service
	gate     *payments.Gate
	verifier *authorship.Service
	hub      *Hub
	logger   logging.Logger
	origin   string
}

func New(nodeManager *nodes.Manager, postService *posts.Service, gate *payments.Gate,
	verifier *authorship.Service, hub *Hub, origin string, logger logging.Logger) *Server {
	return &Server{
		nodes:    nodeManager,
		posts:    postService,
		gate:     gate,
		verifier: verifier,
		hub:      hub,
		logger:   logger.With("component", "web"),
		origin:   origin,
	}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("POST /api/posts/{id}/invoice", s.handleInvoice)
	mux.HandleFunc("POST /api/posts/{id}/upvote", s.handleUpvote)
	mux.HandleFunc("POST /api/posts/{id}/verify", s.handleVerify)
	mux.HandleFunc("GET /api/events", s.hub.handleEvents)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{s.origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Token"},
	})
	return c.Handler(mux)
}
