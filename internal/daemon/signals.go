package daemon

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}

// signalContext returns a context cancelled on SIGTERM or SIGINT. The signal
// is logged so the app log shows why the watch loops ended. Call the
// returned function to stop listening.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)

	go func() {
		select {
		case sig := <-ch:
			log.Printf("daemon: received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
