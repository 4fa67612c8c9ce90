// Package commands contains the administrative commands for the ledger.
package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ardanlabs/powledger/business/sys/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/redis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// storeFlags holds the flags shared by every command to reach the store.
type storeFlags struct {
	kind      string
	redisAddr string
	redisDB   int
	diskPath  string
	timeout   time.Duration
}

// NewRoot constructs the admin command tree.
func NewRoot(log *zap.SugaredLogger) *cobra.Command {
	var sf storeFlags

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for the ledger store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&sf.kind, "store", "s", database.KindRedis, "Store kind: memory, redis or disk.")
	root.PersistentFlags().StringVar(&sf.redisAddr, "redis-addr", "localhost:6379", "Address of the redis server.")
	root.PersistentFlags().IntVar(&sf.redisDB, "redis-db", 0, "Redis database number.")
	root.PersistentFlags().StringVar(&sf.diskPath, "disk-path", "zblock/ledger", "Directory of the disk store.")
	root.PersistentFlags().DurationVar(&sf.timeout, "timeout", 10*time.Second, "Deadline for the command.")

	// with opens the store, runs the function against the ledger and
	// releases the store.
	with := func(cmd *cobra.Command, fn func(ctx context.Context, st *state.State, out io.Writer) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), sf.timeout)
		defer cancel()

		kv, err := database.Open(ctx, database.Config{
			Kind:     sf.kind,
			Redis:    redis.Config{Addr: sf.redisAddr, DB: sf.redisDB},
			DiskPath: sf.diskPath,
		})
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}

		ev := func(v string, args ...any) {
			log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
		}

		st, err := state.New(state.Config{KV: kv, EvHandler: ev})
		if err != nil {
			kv.Close()
			return err
		}
		defer st.Shutdown()

		return fn(ctx, st, cmd.OutOrStdout())
	}

	root.AddCommand(
		genesisCmd(with),
		difficultyCmd(with),
		chargeCmd(with),
		usersCmd(with),
		registerCmd(with),
		blocksCmd(with),
		balanceCmd(with),
	)

	return root
}

// runner executes a command body against an open ledger.
type runner func(cmd *cobra.Command, fn func(ctx context.Context, st *state.State, out io.Writer) error) error
