package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/spf13/cobra"
)

func usersCmd(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the registered accounts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(cmd, func(ctx context.Context, st *state.State, out io.Writer) error {
				names, err := st.ListAccounts(ctx)
				if err != nil {
					return err
				}

				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			})
		},
	}
}

func registerCmd(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Register an account.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(cmd, func(ctx context.Context, st *state.State, out io.Writer) error {
				reg, err := st.RegisterAccount(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Account: %s  New: %t\n", reg.Name, reg.IsNew)
				return nil
			})
		},
	}
}

func blocksCmd(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "List the blocks, oldest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(cmd, func(ctx context.Context, st *state.State, out io.Writer) error {
				blocks, err := st.ListBlocks(ctx)
				if err != nil {
					return err
				}

				for _, b := range blocks {
					fmt.Fprintf(out, "%s  %s  miner[%s]  parent[%s]  msg[%s]\n", b.CreatedAt.Format(time.RFC3339), b.Hash, b.Miner, b.ParentHash, b.Message)
				}
				return nil
			})
		},
	}
}

func balanceCmd(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account> [hash]",
		Short: "Print the balance of an account as of a block, or as of every block.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(cmd, func(ctx context.Context, st *state.State, out io.Writer) error {
				if len(args) == 2 {
					amount, err := st.GetBalance(ctx, args[0], args[1])
					if err != nil {
						return err
					}

					fmt.Fprintf(out, "Account: %s  Balance: %v\n", args[0], amount)
					return nil
				}

				blocks, err := st.ListBlocks(ctx)
				if err != nil {
					return err
				}

				history, err := st.AccountBalances(ctx, args[0])
				if err != nil {
					return err
				}

				for _, b := range blocks {
					fmt.Fprintf(out, "Block: %s  Balance: %v\n", b.Hash, history[b.Hash])
				}
				return nil
			})
		},
	}
}
