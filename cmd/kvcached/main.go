// Command kvcached runs the key-value cache server. The root command
// delegates to an explicit serve subcommand so -h produces useful
// output and flags live next to the command they affect.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "kvcached",
		Short: "An in-memory key-value cache with a durable write-ahead log",
	}
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
