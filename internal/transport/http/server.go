// Package http builds the loopback listener each node binary exposes to its
// on-device UI process. The surface is local-only, so the tuning leans small:
// short read/write deadlines and a modest idle window.
package http

import (
	"log"
	"net/http"
	"time"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// AccessLog wraps next so every request lands in the node log.
func AccessLog(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// NewLoopbackServer returns the tuned local server for a node's UI surface.
func NewLoopbackServer(address string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         address,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}
