package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/spf13/cobra"
)

func difficultyCmd(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "difficulty [n]",
		Short: "Print or set the difficulty.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(cmd, func(ctx context.Context, st *state.State, out io.Writer) error {
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("parsing difficulty: %w", err)
					}
					if err := st.SetDifficulty(ctx, n); err != nil {
						return err
					}
				}

				tun, err := st.Tunables(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Difficulty: %d\n", tun.Difficulty)
				return nil
			})
		},
	}
}

func chargeCmd(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "charge [fraction]",
		Short: "Print or set the transfer charge.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(cmd, func(ctx context.Context, st *state.State, out io.Writer) error {
				if len(args) == 1 {
					f, err := strconv.ParseFloat(args[0], 64)
					if err != nil {
						return fmt.Errorf("parsing transfer charge: %w", err)
					}
					if err := st.SetTransferCharge(ctx, f); err != nil {
						return err
					}
				}

				tun, err := st.Tunables(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Transfer charge: %v\n", tun.TransferCharge)
				return nil
			})
		},
	}
}
