// Package server exposes the voice service over HTTP: a WebSocket
// endpoint for live voice sessions plus a JSON API for customer
// profiles, knowledge ingestion, and session provisioning.
package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/parleyvoice/go-parley/internal/config"
	"github.com/parleyvoice/go-parley/pkg/customer"
	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/ingest"
	"github.com/parleyvoice/go-parley/pkg/knowledge"
	"github.com/parleyvoice/go-parley/pkg/prompt"
	"github.com/parleyvoice/go-parley/pkg/stt"
	"github.com/parleyvoice/go-parley/pkg/tts"
	"github.com/parleyvoice/go-parley/pkg/user"
)

// tokenTTL is how long a provisioned session token stays redeemable.
const tokenTTL = time.Hour

// Deps carries everything the server needs. Providers shared across
// sessions (LLM, knowledge) are passed directly; per-session providers
// (transcription, synthesis) are built through factories because their
// connections and voices are session-scoped.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Customers customer.Store
	Knowledge knowledge.Store
	LLM       inference.Provider
	Assembler *prompt.Assembler
	Ingestor  *ingest.Ingestor
	Tracker   *ingest.Tracker
	Users     user.Store
	Signer    *user.Signer

	// NewSTT opens a fresh transcription stream for one session.
	NewSTT func() (stt.Provider, error)

	// NewTTS builds a synthesis provider for the given voice. An empty
	// voice selects the deployment default.
	NewTTS func(voice string) (tts.Provider, error)
}

// Server is the voice service HTTP server.
type Server struct {
	app    *fiber.App
	deps   Deps
	tokens *tokenStore
	logger *slog.Logger
}

// NewServer wires routes and middleware.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		deps:   deps,
		tokens: newTokenStore(tokenTTL),
		logger: logger.With("component", "server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Parley Voice",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/sessions", s.handleCreateSession)

	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)
	api.Get("/auth/me", s.handleMe)

	api.Post("/customers", s.handleCreateCustomer)
	api.Get("/customers", s.handleListCustomers)
	api.Get("/customers/:id", s.handleGetCustomer)
	api.Put("/customers/:id", s.handleUpdateCustomer)
	api.Delete("/customers/:id", s.handleDeleteCustomer)

	api.Post("/customers/:id/documents", s.handleIngestDocument)
	api.Get("/customers/:id/documents/jobs", s.handleListJobs)
	api.Get("/customers/:id/documents/jobs/:jobID", s.handleJobStatus)
	api.Delete("/customers/:id/documents/:docID", s.handleDeleteDocument)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice", websocket.New(s.handleVoiceWS))

	s.app = app
	return s
}

// Start listens on the given port and blocks until Shutdown.
func (s *Server) Start(port string) error {
	s.logger.Info("listening", "port", port)
	return s.app.Listen(":" + port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app, mainly for handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateSessionRequest provisions a voice session for a customer.
type CreateSessionRequest struct {
	CustomerID string `json:"customer_id"`
}

// CreateSessionResponse returns the single-use token a client presents
// when opening the voice WebSocket.
type CreateSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	WSPath    string    `json:"ws_path"`
}

// handleCreateSession issues a session token for a known customer.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.CustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer_id is required"})
	}

	if _, err := s.deps.Customers.Get(req.CustomerID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown customer"})
	}

	token, expires := s.tokens.Issue(req.CustomerID)
	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{
		Token:     token,
		ExpiresAt: expires,
		WSPath:    "/ws/voice?token=" + token,
	})
}
