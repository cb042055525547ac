package config

import "time"

// Config holds configuration shared by the flowrun commands.
type Config struct {
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.flowrun/flowrun.db, ":memory:" for testing)

	WorkDir      string        // Root for per-task working directories
	QueueSize    int           // Local executor queue capacity
	Workers      int           // Local executor worker goroutines
	PollInterval time.Duration // Monitor poll interval
}

// ServerConfig holds configuration for the status API server.
type ServerConfig struct {
	Addr string // Listen address (default ":8080")
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		QueueSize:    16,
		Workers:      4,
		PollInterval: 50 * time.Millisecond,
	}
}

// DefaultServer returns sensible server defaults.
func DefaultServer() ServerConfig {
	return ServerConfig{Addr: ":8080"}
}
