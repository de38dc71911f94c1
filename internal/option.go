package internal

import (
	"io"

	"github.com/starford/inkmath/internal/recognition"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	recognizer recognition.Recognizer
	logOutput  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRecognizer replaces the HTTP recognition client.
func WithRecognizer(r recognition.Recognizer) Option {
	return func(a *application) {
		a.recognizer = r
	}
}

// WithLogOutput redirects the JSON log stream. The MCP server needs stdout
// for the protocol and logs to stderr instead.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
