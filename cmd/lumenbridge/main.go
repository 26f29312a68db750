// lumenbridge - client for Bifrost-style cross-chain deposit bridges
//
// Copyright (c) 2026 lumenbridge contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/lumenbridge/cmd/lumenbridge/internal/deposit"
	"github.com/tinyland-inc/lumenbridge/cmd/lumenbridge/internal/version"
)

func NewLumenbridgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "lumenbridge",
		Short:   "lumenbridge - cross-chain deposit client",
		Example: "lumenbridge deposit --chain bitcoin",
	}

	cmd.AddCommand(
		deposit.NewDepositCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewLumenbridgeCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
