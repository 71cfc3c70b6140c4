package kv

import (
	"context"
	"time"

	"github.com/ValentinKolb/objectis/cmd/util"
	"github.com/ValentinKolb/objectis/lib/common"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/spf13/cobra"
)

var (
	pool store.IPool
	conf *common.ClientConfig

	// KeyValueCommands represents the raw backend command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Inspect the raw keys of the backend",
		Long:               "Low level access to the keys objectis writes: encoded records at {type}/{id}, type indexes at {type} and collections at {type}/{name}.",
		PersistentPreRunE:  setupPool,
		PersistentPostRunE: closePool,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(membersCmd)
	KeyValueCommands.AddCommand(isMemberCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(flushCmd)
	KeyValueCommands.AddCommand(infoCmd)
}

// setupPool opens the backend pool
func setupPool(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf = util.GetClientConfig()
	if err := conf.Validate(); err != nil {
		return err
	}
	if err := common.InitLoggers(*conf); err != nil {
		return err
	}

	var err error
	pool, err = util.OpenPool(conf)
	return err
}

func closePool(_ *cobra.Command, _ []string) error {
	if pool == nil {
		return nil
	}
	return pool.Close()
}

// withConn runs fn on one connection with the configured timeout
func withConn(fn func(ctx context.Context, conn store.IConn) error) error {
	ctx := context.Background()
	if conf.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(conf.TimeoutSecond)*time.Second)
		defer cancel()
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(conn)
	return fn(ctx, conn)
}
