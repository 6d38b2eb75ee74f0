package main

import (
	"github.com/chainvault/walletgate/cmd/cli"
)

// main is the entry point for the walletgate command-line tool. It
// delegates all execution to the Execute function of the cli package.
func main() {
	cli.Execute()
}
