// Command fetch queries quotes, history and symbol search from the command
// line, either in-process against the provider or through a running server.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
