package verifier

import "time"

// Defaults applied by New when corresponding Config fields are unset.
const (
	DefaultMaxConcurrent = 10
	DefaultTemperature   = 0.1
	DefaultMaxTokens     = 512

	// MaxTaskLength is the upper bound on task descriptions, in characters.
	MaxTaskLength = 500
)

// Config controls the verification pipeline.
type Config struct {
	// Model is the upstream model identifier.
	Model string
	// MaxConcurrent bounds in-flight model calls.
	MaxConcurrent int
	// QueueTimeout bounds the wait for an admission slot; zero waits indefinitely.
	QueueTimeout time.Duration
	// DetectMIME sniffs the image type instead of labelling every image as JPEG.
	DetectMIME  bool
	Temperature float64
	MaxTokens   int
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.QueueTimeout < 0 {
		c.QueueTimeout = 0
	}
	return c
}
