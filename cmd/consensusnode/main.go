package main

import (
	"fmt"
	"os"

	"github.com/xxnithicxx/Consensus-Lab-Project/cmd/consensusnode/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
