package cli

import (
	"bytes"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/waftester/scantriage/pkg/defaults"
)

func TestSignalContext_CancelOnInterrupt(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, nil, nil)
	defer cancel()

	// Send SIGINT.
	sigChan <- os.Interrupt

	select {
	case <-ctx.Done():
		
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after signal")
	}
}

func TestSignalContext_ManualCancel(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, nil, nil)

	// The goroutine exits via ctx.Done.
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after manual cancel")
	}
}

func TestSignalContext_GracePeriod_SecondSignalExits(t *testing.T) {
	sigChan := make(chan os.Signal, 2) // buffered for two signals
	var exitCode atomic.Int32
	exitCode.Store(-1) // sentinel: not called

	exitFn := func(code int) {
		exitCode.Store(int32(code))
	}

	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, exitFn, nil)
	defer cancel()

	// First signal cancels the context.
	sigChan <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after first signal")
	}

	// Second signal during grace period aborts with the interrupt code.
	sigChan <- os.Interrupt

	// Wait briefly for exit to be called.
	deadline := time.After(2 * time.Second)
	for {
		if exitCode.Load() == defaults.ExitInterrupted {
			return
		}
		select {
		case <-deadline:
			t.Fatal("exitFn was not called after second signal")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestSignalContext_GracePeriod_Expires(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	var exitCalled atomic.Bool

	exitFn := func(int) {
		exitCalled.Store(true)
	}

	_, cancel := signalContextWithNotifier(50*time.Millisecond, sigChan, exitFn, nil)
	defer cancel()

	// First signal cancels the context.
	sigChan <- os.Interrupt

	// Wait for grace period to expire (50ms + margin).
	time.Sleep(200 * time.Millisecond)

	// Only one signal was sent.
	if exitCalled.Load() {
		t.Error("exitFn should not be called when grace period expires without second signal")
	}
}

func TestSignalContext_NoSignal_ContextUsable(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, nil, nil)
	defer cancel()

	// Context should not be done.
	select {
	case <-ctx.Done():
		t.Fatal("context should not be cancelled without signal or cancel")
	default:
	}
}

func TestSignalContext_PrintsNotice(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	var notice bytes.Buffer
	ctx, cancel := signalContextWithNotifier(time.Second, sigChan, func(int) {}, &notice)
	defer cancel()

	sigChan <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after signal")
	}

	// The notice is written before cancel, so it is visible here.
	if !strings.Contains(notice.String(), "finishing in-flight chunks") {
		t.Errorf("unexpected notice %q", notice.String())
	}
}
