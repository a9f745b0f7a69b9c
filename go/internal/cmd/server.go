package main

import (
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/draftengine/go/internal/config"
	"github.com/mcdev12/draftengine/go/internal/draft/service"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *config.Config, engine *Engine) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(mux, cfg, engine)
	if engine.Hub != nil {
		engine.Hub.RegisterRoutes(mux)
	}
	setupHealthCheck(mux)

	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, cfg *config.Config, engine *Engine) {
	chain := []connect.Interceptor{service.NewLoggingInterceptor()}
	if cfg.Server.JWTSecret != "" {
		chain = append(chain, service.NewAuthInterceptor([]byte(cfg.Server.JWTSecret)))
	} else {
		log.Warn().Msg("no jwt secret configured, trusting X-Actor-ID header")
	}
	interceptors := connect.WithInterceptors(chain...)

	draftPath, draftHandler := engine.Drafts.Handler(interceptors)
	mux.Handle(draftPath, draftHandler)

	derbyPath, derbyHandler := engine.Derbies.Handler(interceptors)
	mux.Handle(derbyPath, derbyHandler)
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
