// Command feedctl runs the fake feed API and a command-line feed client.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/feedstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
