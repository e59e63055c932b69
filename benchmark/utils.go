package benchmark

import (
	"RC/configs"
	"RC/rendezvous"
	"RC/storage"
	"RC/wakeup"
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// Identities of the two roles when they share one process.
const (
	LocalForeground = 1
	LocalBackground = 2
)

const localRendezvousInterval = time.Millisecond

// RunLocal runs the driver and the interferer as goroutines of this process,
// woken through mailboxes instead of signals. If one role fails the other is
// cancelled. Both roles are always cleaned up.
func RunLocal(ctx context.Context, cfg *configs.Config, store storage.Store) (*Report, error) {
	dir := cfg.RendezvousDir
	if dir == "" || dir == "." {
		tmp, err := os.MkdirTemp("", "race-local-*")
		if err != nil {
			return nil, fmt.Errorf("creating rendezvous dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	waker := wakeup.NewLocalWaker()
	fgBox, bgBox := wakeup.NewMailbox(), wakeup.NewMailbox()
	waker.Register(LocalForeground, fgBox)
	waker.Register(LocalBackground, bgBox)

	fg := NewForeground(cfg, store, rendezvous.New(dir, localRendezvousInterval), waker, fgBox, LocalForeground)
	bg := NewBackground(cfg, store, rendezvous.New(dir, localRendezvousInterval), waker, bgBox, LocalBackground)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := bg.Run(gctx)
		if cerr := bg.CleanUp(); err == nil {
			err = cerr
		}
		return err
	})
	g.Go(func() error {
		err := fg.Run(gctx)
		if cerr := fg.CleanUp(); err == nil {
			err = cerr
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fg.Report(), nil
}
