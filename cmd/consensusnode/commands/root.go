// Package commands implements the consensusnode CLI: run, keygen, and
// config show, modeled on the teacher's cmd/babble/commands root/run split
// (cobra commands, flags bound through viper).
package commands

import (
	"github.com/spf13/cobra"

	"github.com/xxnithicxx/Consensus-Lab-Project/config"
)

var rootConfig = config.NewDefaultConfig()

// RootCmd is the top-level consensusnode command.
var RootCmd = &cobra.Command{
	Use:   "consensusnode",
	Short: "Run or inspect a consensus-simulator node",
}

func init() {
	RootCmd.AddCommand(NewRunCmd())
	RootCmd.AddCommand(NewKeygenCmd())
	RootCmd.AddCommand(NewConfigCmd())
	RootCmd.AddCommand(NewVersionCmd())
}
