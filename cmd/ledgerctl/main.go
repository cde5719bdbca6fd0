package main

import (
	"os"

	"github.com/odyssey-erp/ledgerflow/cmd/ledgerctl/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.OpenBackend).Execute(); err != nil {
		os.Exit(1)
	}
}
