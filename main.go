// Xuanxuan desktop host.
//
// Without arguments the binary runs the host process, which owns the
// status-area icon and spawns one window process per application window
// (the same binary, re-executed with the hidden "window" command).
package main

import (
	"fmt"
	"os"

	"github.com/easysoft/xuanxuan-host/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
