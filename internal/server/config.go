package server

import "github.com/raysh454/webscan/internal/logging"

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// AllowedOrigins lists the origins CORS admits. "*" admits any.
	AllowedOrigins []string

	Logger logging.Logger
}
