// Command fidematch resolves tournament rosters against the FIDE ratings registry.
//
// Usage:
//
//	fidematch run roster.tsv > rated.tsv
//	pbpaste | fidematch run --rating rapid --align
//	fidematch lookup Lana Ram
//	fidematch deny add "Zhang, Kaylin" 3260000
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}
