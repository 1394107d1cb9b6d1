package shell

import (
	"os"
	"os/signal"
	"syscall"
)

// InterruptSignals are the signals that should stop a run gracefully.
var InterruptSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}

// forwardSignals are the signals we relay to a running subprocess.
var forwardSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP}

func notifySignals(ch chan os.Signal, signals ...os.Signal) {
	signal.Notify(ch, signals...)
}

func stopNotifySignals(ch chan os.Signal) {
	signal.Stop(ch)
}

// RegisterSignalHandler registers a handler for the given signals. When a signal arrives, the given callback is
// invoked once.
func RegisterSignalHandler(notifyFn func(os.Signal), sigs ...os.Signal) {
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, sigs...)

		sig := <-sigCh
		notifyFn(sig)
	}()
}
