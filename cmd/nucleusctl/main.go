// Command nucleusctl is a self-test and inspection CLI for package
// kernel: it drives an in-process Kernel through the spec's end-to-end
// scenarios and dumps its process/socket tables. Grounded on
// arctir-proctor's cmd/cmd.go cobra wiring style (a bare root command
// with subcommands attached in one setup function, executed from
// main).
package main

import (
	"fmt"
	"os"

	"github.com/nucleus-os/nucleus/cmd/nucleusctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
