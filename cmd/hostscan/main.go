// Command hostscan normalizes host scan records and loads them into a
// warehouse table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hostscan/hostscan/cmd/hostscan/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.NewCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		if !commands.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(commands.ExitCode(err))
	}
}
