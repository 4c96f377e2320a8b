package internal

import (
	"io"

	"github.com/starford/almanac/internal/index"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	indexOpts []index.Option
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where logs go when app.log_file is empty. The default
// is stdout; the MCP stdio server needs stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithIndexOptions appends options for the task indexer.
func WithIndexOptions(opts ...index.Option) Option {
	return func(a *application) {
		a.indexOpts = append(a.indexOpts, opts...)
	}
}
