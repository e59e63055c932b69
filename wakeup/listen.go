package wakeup

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Listen turns SIGUSR1 into mb.Deliver and SIGINT/SIGTERM into shutdown.
// The returned stop function restores default signal handling.
func Listen(ctx context.Context, mb *Mailbox, shutdown context.CancelFunc) (stop func()) {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, unix.SIGUSR1, unix.SIGINT, unix.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				if sig == unix.SIGUSR1 {
					mb.Deliver()
					continue
				}
				logrus.Infof("received %v, stopping", sig)
				shutdown()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
