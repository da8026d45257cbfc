// Command ordersync runs one peer of the restaurant order sync engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ordersync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
