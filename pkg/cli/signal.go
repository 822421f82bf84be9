package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waftester/scantriage/pkg/defaults"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. The
// analysis then stops reading and drains in-flight chunks. If a second
// signal arrives during gracePeriod the process exits with
// defaults.ExitInterrupted without writing anything.
//
// Usage:
//
//	ctx, cancel := cli.SignalContext(30 * time.Second)
//	defer cancel()
func SignalContext(gracePeriod time.Duration) (context.Context, context.CancelFunc) {
	return signalContextWithNotifier(gracePeriod, nil, nil, os.Stderr)
}

// signalContextWithNotifier is the internal implementation for testing.
// sigChan, if non-nil, overrides the real signal channel.
// exitFn, if non-nil, overrides os.Exit for testing.
func signalContextWithNotifier(
	gracePeriod time.Duration,
	sigChan chan os.Signal,
	exitFn func(int),
	notice io.Writer,
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}

	if exitFn == nil {
		exitFn = os.Exit
	}
	if notice == nil {
		notice = io.Discard
	}

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(notice)
			fmt.Fprintln(notice, "Interrupt received, finishing in-flight chunks (Ctrl+C again to abort)...")
			cancel()

			select {
			case <-sigChan:
				exitFn(defaults.ExitInterrupted)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
		if ownChannel {
			signal.Stop(sigChan)
		}
	}()

	return ctx, cancel
}
