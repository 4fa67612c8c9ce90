package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/spf13/cobra"
)

func genesisCmd(with runner) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Seed the store with the genesis file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := genesis.Default()
			if path != "" {
				var err error
				if g, err = genesis.Load(path); err != nil {
					return fmt.Errorf("loading genesis: %w", err)
				}
			}

			return with(cmd, func(ctx context.Context, st *state.State, out io.Writer) error {
				root, created, err := st.Seed(ctx, g)
				if err != nil {
					return err
				}

				status := "exists"
				if created {
					status = "created"
				}
				fmt.Fprintf(out, "Root: %s (%s)\n", root.Hash, status)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "zblock/genesis.yaml", "Path to the genesis file, empty for the default genesis.")

	return cmd
}
