package common

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/ValentinKolb/objectis/lib/batch"
	"github.com/ValentinKolb/objectis/lib/codec"
)

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// ClientConfig holds all configuration parameters of an objectis client.
type ClientConfig struct {
	// backend selection
	Backend Backend

	// redis backend parameters
	RedisAddr     string
	RedisDB       int
	RedisPassword string

	// maximum number of connections handed out at once (0 = 2 * NumCPU)
	PoolSize int

	// batch executor (Workers 0 = NumCPU)
	Workers        int
	BatchThreshold int
	Parallel       bool

	// encoding
	Codec       string
	Compression string

	// timeout of a single façade operation (0 = none)
	TimeoutSecond int

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns the configuration used when nothing is set
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Backend:        BackendMemory,
		RedisAddr:      "localhost:6379",
		RedisDB:        0,
		PoolSize:       0,
		Workers:        0,
		BatchThreshold: batch.DefaultThreshold,
		Parallel:       true,
		Codec:          codec.NameGoJSON,
		Compression:    "none",
		TimeoutSecond:  0,
		LogLevel:       "warn",
	}
}

// EffectiveWorkers returns the number of batch workers actually used
func (c *ClientConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Validate checks the configuration for invalid values
func (c *ClientConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("the redis backend needs an address")
		}
	default:
		return fmt.Errorf("unknown backend '%s' (expected %s or %s)", c.Backend, BackendMemory, BackendRedis)
	}

	if c.PoolSize < 0 || c.Workers < 0 || c.BatchThreshold < 0 || c.TimeoutSecond < 0 {
		return fmt.Errorf("pool size, workers, batch threshold and timeout must not be negative")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis database %d", c.RedisDB)
	}

	if _, err := codec.New(c.Codec, c.Compression); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Backend")
	addField("Type", string(c.Backend))
	if c.Backend == BackendRedis {
		addField("Address", c.RedisAddr)
		addField("Database", strconv.Itoa(c.RedisDB))
		if c.RedisPassword != "" {
			addField("Password", "********")
		}
	}
	pool := "auto"
	if c.PoolSize > 0 {
		pool = strconv.Itoa(c.PoolSize)
	}
	addField("Pool Size", pool)

	addSection("Batch Executor")
	addField("Parallel", strconv.FormatBool(c.Parallel))
	addField("Workers", strconv.Itoa(c.EffectiveWorkers()))
	addField("Threshold", fmt.Sprintf("%d items", c.BatchThreshold))

	addSection("Encoding")
	addField("Codec", c.Codec)
	addField("Compression", c.Compression)

	addSection("Client")
	if c.TimeoutSecond > 0 {
		addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	} else {
		addField("Timeout", "none")
	}
	addField("Log Level", c.LogLevel)

	return sb.String()
}
