package discount

import (
	"context"
	"net"
	"net/http"
	"time"
)

type Server struct {
	httpServer *http.Server
}

// Run blocks until the server stops. Purchases can wait on the network for a while, hence the long write timeout.
func (s *Server) Run(host, port string, handler http.Handler) error {
	if host == "" {
		host = "127.0.0.1"
	}
	s.httpServer = &http.Server{
		Addr:           net.JoinHostPort(host, port),
		Handler:        handler,
		MaxHeaderBytes: 1 << 20,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
