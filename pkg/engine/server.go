package engine

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

/*
Server exposes the engine over HTTP.

Peer endpoint:
  POST /messages
    - Body: one encoded signed message
    - 200 + Ack when the message changed state
    - 202 + Ack when it was valid but matched no transfer or was ignored
    - 400 when it could not be decoded, verified or applied to the channel ledger
    - 429 when the inbound rate limit is exceeded

Operator endpoints:
  POST /channels                     register a channel with a partner
  POST /channels/{address}/direct    pay the partner without a lock
  POST /transfers                    initiate a mediated transfer
  GET  /transfers                    list transfer records
  GET  /transfers/{id}               fetch one record
  POST /transfers/{id}/cancel        cancel before the secret is revealed
  GET  /health                       persistence health and block height
*/

// maxBodySize bounds inbound request bodies
const maxBodySize = 1 << 20

// Server handles HTTP requests for the engine
type Server struct {
	engine     *Engine
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a new server instance. A zero rate limit disables limiting.
func NewServer(engine *Engine, port int, rateLimit float64) *Server {
	s := &Server{
		engine: engine,
	}
	if rateLimit > 0 {
		burst := int(rateLimit)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}

	mux := http.NewServeMux()

	// Peer endpoint
	mux.HandleFunc("POST /messages", s.handleMessage)

	// Operator endpoints
	mux.HandleFunc("POST /channels", s.handleRegisterChannel)
	mux.HandleFunc("POST /channels/{address}/direct", s.handleDirectTransfer)
	mux.HandleFunc("POST /transfers", s.handleInitiateTransfer)
	mux.HandleFunc("GET /transfers", s.handleListTransfers)
	mux.HandleFunc("GET /transfers/{id}", s.handleGetTransfer)
	mux.HandleFunc("POST /transfers/{id}/cancel", s.handleCancelTransfer)
	mux.HandleFunc("DELETE /transfers/{id}", s.handlePurgeTransfer)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.engine.logger.Sugar().Infow("Starting HTTP server", "address", s.engine.Address.Hex(), "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.engine.logger.Sugar().Errorw("HTTP server error", "address", s.engine.Address.Hex(), "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
