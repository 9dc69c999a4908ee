package memcore

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "file", "valkey" or "redis"
	path     string
	addrs    []string
	password string
	key      string
	actor    string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithFile keeps snapshots in a local file.
func WithFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "file"
		c.path = path
	})
}

// WithValkey keeps snapshots in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis keeps snapshots in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKey sets the key the snapshot is stored under for Redis and Valkey.
// Default: "memcore:snapshot".
func WithKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.key = key
	})
}

// WithActor sets the writer id stamped on registers of a new document.
// A loaded snapshot keeps the actor it was written with.
func WithActor(actor string) Option {
	return optionFunc(func(c *clientConfig) {
		c.actor = actor
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
