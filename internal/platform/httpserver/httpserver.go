// Package httpserver configures the process HTTP listener.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server the governance API listens on. Request and response
// bodies are small JSON documents, so the slow-client timeouts stay tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
