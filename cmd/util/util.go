package util

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/objectis/lib/common"
	"github.com/ValentinKolb/objectis/lib/db"
	"github.com/ValentinKolb/objectis/lib/db/engines/maple"
	"github.com/ValentinKolb/objectis/lib/objectis"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/ValentinKolb/objectis/lib/store/lstore"
	"github.com/ValentinKolb/objectis/lib/store/rstore"
	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the backend, batch and encoding flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	def := common.DefaultClientConfig()

	key := "backend"
	cmd.PersistentFlags().String(key, string(def.Backend), WrapString("Backend to use (memory, redis). The memory backend lives only as long as the process"))

	key = "redis-addr"
	cmd.PersistentFlags().String(key, def.RedisAddr, WrapString("Address of the redis server"))

	key = "redis-db"
	cmd.PersistentFlags().Int(key, def.RedisDB, WrapString("Redis database number"))

	key = "redis-password"
	cmd.PersistentFlags().String(key, "", WrapString("Redis password (prefer the OBJECTIS_REDIS_PASSWORD environment variable)"))

	key = "pool-size"
	cmd.PersistentFlags().Int(key, def.PoolSize, WrapString("Maximum number of connections in use at once (0 = 2 * number of CPUs)"))

	key = "workers"
	cmd.PersistentFlags().Int(key, def.Workers, WrapString("Number of batch workers (0 = number of CPUs)"))

	key = "batch-threshold"
	cmd.PersistentFlags().Int(key, def.BatchThreshold, WrapString("Item count from which bulk operations are split across the workers"))

	key = "parallel"
	cmd.PersistentFlags().Bool(key, def.Parallel, WrapString("Whether bulk operations may use the batch workers at all"))

	key = "codec"
	cmd.PersistentFlags().String(key, def.Codec, WrapString("Record encoding (json, go-json, gob)"))

	key = "compression"
	cmd.PersistentFlags().String(key, def.Compression, WrapString("Compression of encoded records (none, lz4, zstd)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single operation (0 = none)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, def.LogLevel, WrapString("Log level (debug, info, warn, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("objectis")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Backend:        common.Backend(viper.GetString("backend")),
		RedisAddr:      viper.GetString("redis-addr"),
		RedisDB:        viper.GetInt("redis-db"),
		RedisPassword:  viper.GetString("redis-password"),
		PoolSize:       viper.GetInt("pool-size"),
		Workers:        viper.GetInt("workers"),
		BatchThreshold: viper.GetInt("batch-threshold"),
		Parallel:       viper.GetBool("parallel"),
		Codec:          viper.GetString("codec"),
		Compression:    viper.GetString("compression"),
		TimeoutSecond:  viper.GetInt("timeout"),
		LogLevel:       viper.GetString("log-level"),
	}
}

// OpenPool creates the connection pool of the configured backend.
// Redis pools are pinged before they are returned.
func OpenPool(conf *common.ClientConfig) (store.IPool, error) {
	switch conf.Backend {
	case common.BackendMemory:
		return lstore.NewLocalPool(func() db.KVDB { return maple.NewMapleDB(nil) }, conf.PoolSize), nil
	case common.BackendRedis:
		pool := rstore.NewRedisPool(&redis.Options{
			Addr:     conf.RedisAddr,
			DB:       conf.RedisDB,
			Password: conf.RedisPassword,
			PoolSize: conf.PoolSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rstore.Ping(ctx, pool); err != nil {
			_ = pool.Close()
			return nil, err
		}
		return pool, nil
	default:
		return nil, fmt.Errorf("invalid backend %s", conf.Backend)
	}
}

// OpenClient validates the configuration, sets up logging and connects to the backend
func OpenClient(conf *common.ClientConfig) (*objectis.Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(*conf); err != nil {
		return nil, err
	}
	pool, err := OpenPool(conf)
	if err != nil {
		return nil, err
	}
	client, err := objectis.NewClient(pool, *conf)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return client, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// PrintJSON writes v as indented JSON to stdout
func PrintJSON(v any) error {
	out, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
