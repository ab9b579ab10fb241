package config

import "time"

const (
	// Outbound HTTP timeouts
	RequestTimeout   = 60 * time.Second
	PageFetchTimeout = 5 * time.Second

	// Language model
	DefaultModel      = "gpt-4o-mini"
	AnswerTemperature = 0.7
	MaxAnswerTokens   = 500

	// Search
	MaxSearchResults  = 5
	MaxYouTubeResults = 3
	MaxDescriptionLen = 150

	// Server
	ShutdownTimeout   = 10 * time.Second
	ReadHeaderTimeout = 5 * time.Second

	// User-visible notices kept until the next state fetch
	MaxPendingNotices = 20
)
