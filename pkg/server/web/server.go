// Package web provides the plumbing for the composer's RESTful API.
package web

import (
	"context"
	"expvar"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/compose"
	"github.com/quickmail/quickmail/pkg/config"
)

var (
	// manager holds the composer session manager used by handlers.
	manager compose.Manager

	// Router sends incoming requests to the correct handler function.
	Router = mux.NewRouter()

	rootConfig     *config.Root
	rootHandler    http.Handler
	server         *http.Server
	listener       net.Listener
	globalShutdown chan bool

	// ExpWebSocketConnectsCurrent tracks the number of open WebSockets.
	ExpWebSocketConnectsCurrent = new(expvar.Int)
)

func init() {
	m := expvar.NewMap("http")
	m.Set("WebSocketConnectsCurrent", ExpWebSocketConnectsCurrent)
}

// Initialize sets up things for unit tests or the Start() method.
func Initialize(conf *config.Root, shutdownChan chan bool, sm compose.Manager) {
	rootConfig = conf
	globalShutdown = shutdownChan
	manager = sm

	Router.NotFoundHandler = noMatchHandler(
		http.StatusNotFound, "No route matches URI path")
	Router.MethodNotAllowedHandler = noMatchHandler(
		http.StatusMethodNotAllowed, "Method not allowed for URI path")

	var h http.Handler = Router
	if conf.Web.CORSOrigin != "" {
		h = corsWrapper(conf.Web.CORSOrigin, h)
	}
	rootHandler = requestLoggingWrapper(h)
}

// Start begins listening for HTTP requests.
func Start(ctx context.Context) {
	server = &http.Server{
		Addr:         rootConfig.Web.Addr,
		Handler:      rootHandler,
		ReadTimeout:  rootConfig.Web.MaxIdle,
		WriteTimeout: rootConfig.Web.MaxIdle,
	}

	// We don't use ListenAndServe because it lacks a way to close the listener.
	log.Info().Str("module", "web").Str("phase", "startup").Str("addr", rootConfig.Web.Addr).
		Msg("HTTP listening on tcp4")
	var err error
	listener, err = net.Listen("tcp", rootConfig.Web.Addr)
	if err != nil {
		log.Error().Str("module", "web").Str("phase", "startup").Err(err).
			Msg("HTTP failed to start TCP4 listener")
		emergencyShutdown()
		return
	}

	// Listener go routine.
	go serve(ctx)

	// Wait for shutdown.
	<-ctx.Done()
	log.Debug().Str("module", "web").Str("phase", "shutdown").
		Msg("HTTP server shutting down on request")

	// Closing the listener will cause the serve() go routine to exit.
	if err := listener.Close(); err != nil {
		log.Error().Str("module", "web").Str("phase", "shutdown").Err(err).
			Msg("Failed to close HTTP listener")
	}
}

// serve begins serving HTTP requests.
func serve(ctx context.Context) {
	// server.Serve blocks until we close the listener.
	err := server.Serve(listener)

	select {
	case <-ctx.Done():
		// Nop.
	default:
		log.Error().Str("module", "web").Err(err).Msg("HTTP server failed")
		emergencyShutdown()
	}
}

func emergencyShutdown() {
	select {
	case <-globalShutdown:
	default:
		close(globalShutdown)
	}
}
