// Package optimization provides concurrency tuning for high load: channel
// buffers, database pool sizes and spectator limits, selectable by profile.
package optimization

import (
	"runtime"
)

// Config holds tuned parameters for a load profile.
type Config struct {
	// Channel buffer sizes
	FeedChannelBuffer int // Event feed fan-in
	ClientSendBuffer  int // Per WebSocket client

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Spectator limits
	MaxClientsPerGame int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		FeedChannelBuffer: 1024, // Handle bursts from parallel games
		ClientSendBuffer:  64,

		DBMaxOpenConns: numCPU * 4, // 4 connections per CPU
		DBMaxIdleConns: numCPU * 2, // Keep half warm

		MaxClientsPerGame: 200,
	}
}

// StressConfig returns aggressive settings for stress testing.
func StressConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		FeedChannelBuffer: 4096,
		ClientSendBuffer:  128,

		DBMaxOpenConns: numCPU * 8,
		DBMaxIdleConns: numCPU * 4,

		MaxClientsPerGame: 500,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		FeedChannelBuffer: 64,
		ClientSendBuffer:  8,

		DBMaxOpenConns: 5,
		DBMaxIdleConns: 2,

		MaxClientsPerGame: 20,
	}
}

// ForProfile maps a profile name to its tuning set. Unknown names fall back
// to the production defaults.
func ForProfile(name string) *Config {
	switch name {
	case "stress":
		return StressConfig()
	case "low":
		return LowResourceConfig()
	default:
		return DefaultConfig()
	}
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseSendBuffer    bool
	IncreaseDBConnections bool
	Notes                 []string
}

// Analyze examines a metrics snapshot and returns tuning recommendations.
func Analyze(metrics map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Check event write latency
	if events, ok := metrics["events"].(map[string]interface{}); ok {
		if maxLat, ok := events["max_write_lat_ms"].(float64); ok && maxLat > 50 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write latency exceeds 50ms - increase DB connections")
		}
		if errors, ok := events["errors"].(int64); ok && errors > 0 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write errors detected - check DB connection pool")
		}
	}

	// Check WebSocket backpressure
	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if errors, ok := ws["errors"].(int64); ok && errors > 0 {
			rec.IncreaseSendBuffer = true
			rec.Notes = append(rec.Notes, "WebSocket errors detected - increase client send buffer")
		}
	}

	return rec
}

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	if rec.IncreaseSendBuffer {
		config.ClientSendBuffer *= 2
	}
	if rec.IncreaseDBConnections {
		config.DBMaxOpenConns = int(float64(config.DBMaxOpenConns) * 1.5)
		config.DBMaxIdleConns = int(float64(config.DBMaxIdleConns) * 1.5)
	}
	return config
}
