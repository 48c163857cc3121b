package sssnss

import (
	"math"
	"time"

	"github.com/rcrowley/go-metrics"
)

// DefaultSocketPath is where the nss responder listens.
const DefaultSocketPath = "/var/lib/sss/pipes/nss"

// Config is used to pass multiple configuration options to sssnss's constructors.
type Config struct {
	// Net is the namespace for the daemon socket.
	Net struct {
		// Path of the nss responder's unix socket (default DefaultSocketPath).
		SocketPath string

		// How long to wait for the initial connection (default 5s).
		DialTimeout time.Duration
		// How long to wait for a reply (default 300s, as the daemon may
		// have to query a remote identity provider first).
		ReadTimeout time.Duration
		// How long to wait for a request to be written (default 5s).
		WriteTimeout time.Duration

		// Refuse to talk to a socket, or a peer process, not owned by root
		// (default true). Only disable this in tests.
		RequireRootOwner bool

		Retry struct {
			// How many times to retry connecting when the socket is missing
			// or refuses connections (default 3).
			Max int
			// How long to wait between connection attempts (default 100ms).
			Backoff time.Duration
		}

		// Breaker settings guard against hammering a daemon that keeps
		// failing; once open, calls fail fast until Timeout has passed.
		Breaker struct {
			// Consecutive failures that open the breaker (default 3).
			ErrorThreshold int
			// Consecutive successes that close it again (default 1).
			SuccessThreshold int
			// How long the breaker stays open (default 10s).
			Timeout time.Duration
		}
	}

	// Enumeration is the namespace for SetGrEnt/GetGrEnt/EndGrEnt.
	Enumeration struct {
		// Maximum number of groups requested per round trip (default
		// DefaultBatchSize).
		BatchSize int
	}

	// Decode is the namespace for reply decoding options.
	Decode struct {
		// Reject group ids that do not fit a native Gid instead of
		// truncating them (default true).
		StrictIDs bool
	}

	// InitGroups is the namespace for InitGroupsDyn.
	InitGroups struct {
		// Largest gid list InitGroupsDyn will grow to on its own; growing
		// past it fails with ErrOutOfMemory (default 65536).
		MaxGroups int
	}

	// The registry to define metrics into.
	// Defaults to a local registry.
	// If you want to disable metrics gathering, set "metrics.UseNilMetrics" to "true"
	// prior to starting sssnss.
	// See Examples on how to use the metrics registry
	MetricRegistry metrics.Registry
}

// NewConfig returns a new configuration instance with sane defaults.
func NewConfig() *Config {
	c := &Config{}

	c.Net.SocketPath = DefaultSocketPath
	c.Net.DialTimeout = 5 * time.Second
	c.Net.ReadTimeout = 300 * time.Second
	c.Net.WriteTimeout = 5 * time.Second
	c.Net.RequireRootOwner = true
	c.Net.Retry.Max = 3
	c.Net.Retry.Backoff = 100 * time.Millisecond
	c.Net.Breaker.ErrorThreshold = 3
	c.Net.Breaker.SuccessThreshold = 1
	c.Net.Breaker.Timeout = 10 * time.Second

	c.Enumeration.BatchSize = DefaultBatchSize

	c.Decode.StrictIDs = true

	c.InitGroups.MaxGroups = 65536

	c.MetricRegistry = metrics.NewRegistry()

	return c
}

// Validate checks a Config instance. It will return a
// ConfigurationError if the specified values don't make sense.
func (c *Config) Validate() error {
	// some configuration values should be warned on but not fail completely, do those first
	if !c.Net.RequireRootOwner {
		Logger.Println("Net.RequireRootOwner is disabled; replies will be trusted from any socket owner.")
	}
	if c.Enumeration.BatchSize > 65536 {
		Logger.Println("Enumeration.BatchSize is very large; the daemon may cap it anyway.")
	}

	// validate Net values
	switch {
	case c.Net.SocketPath == "":
		return ConfigurationError("Net.SocketPath must not be empty")
	case c.Net.DialTimeout <= 0:
		return ConfigurationError("Net.DialTimeout must be > 0")
	case c.Net.ReadTimeout <= 0:
		return ConfigurationError("Net.ReadTimeout must be > 0")
	case c.Net.WriteTimeout <= 0:
		return ConfigurationError("Net.WriteTimeout must be > 0")
	case c.Net.Retry.Max < 0:
		return ConfigurationError("Net.Retry.Max must be >= 0")
	case c.Net.Retry.Backoff < 0:
		return ConfigurationError("Net.Retry.Backoff must be >= 0")
	case c.Net.Breaker.ErrorThreshold <= 0:
		return ConfigurationError("Net.Breaker.ErrorThreshold must be > 0")
	case c.Net.Breaker.SuccessThreshold <= 0:
		return ConfigurationError("Net.Breaker.SuccessThreshold must be > 0")
	case c.Net.Breaker.Timeout < 0:
		return ConfigurationError("Net.Breaker.Timeout must be >= 0")
	}

	// validate the Enumeration values
	switch {
	case c.Enumeration.BatchSize <= 0:
		return ConfigurationError("Enumeration.BatchSize must be > 0")
	case uint64(c.Enumeration.BatchSize) > math.MaxUint32:
		return ConfigurationError("Enumeration.BatchSize must fit in 32 bits")
	}

	// validate the InitGroups values
	if c.InitGroups.MaxGroups <= 0 {
		return ConfigurationError("InitGroups.MaxGroups must be > 0")
	}

	if c.MetricRegistry == nil {
		return ConfigurationError("MetricRegistry must not be nil")
	}

	return nil
}
