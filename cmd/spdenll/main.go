// Command spdenll evaluates the barrier SPDE Poisson likelihood for a YAML
// problem file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "spdenll:", err)
		stop()
		os.Exit(1)
	}
}
