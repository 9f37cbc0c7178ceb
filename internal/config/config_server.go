package config

import "time"

// ServerConfig configures toolmind's HTTP surface: the REST/WebSocket
// Streaming Orchestrator and the Prometheus metrics endpoint.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig configures the Tool Store's optional SQL-backed
// persistence (toolstore.SQLStore), alongside the default in-memory store.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}
