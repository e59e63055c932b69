package benchmark

import (
	"RC/configs"
	"RC/race"
	"RC/rendezvous"
	"RC/storage"
	"RC/utils"
	"RC/wakeup"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Background is the interferer. It owns the run token and the race schedule
// and does one item of work per wake received from the driver.
type Background struct {
	cfg      *configs.Config
	store    storage.Store
	engine   *race.Engine
	rv       *rendezvous.Store
	waker    wakeup.Waker
	mailbox  *wakeup.Mailbox
	self     int
	peer     int
	token    string
	index    int
	r        *rand.Rand
	schedule *race.Schedule
	hold     race.HoldGenerator
}

func NewBackground(cfg *configs.Config, store storage.Store, rv *rendezvous.Store, waker wakeup.Waker, mailbox *wakeup.Mailbox, self int) *Background {
	return &Background{
		cfg:     cfg,
		store:   store,
		engine:  race.NewEngine(store),
		rv:      rv,
		waker:   waker,
		mailbox: mailbox,
		self:    self,
	}
}

// Initialize builds the schedule before anything is published, so a bad
// probability stops the run before the driver can start.
func (b *Background) Initialize(ctx context.Context) error {
	seed := b.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	b.r = rand.New(rand.NewSource(seed))
	var err error
	if b.schedule, err = race.BuildSchedule(b.cfg.Items, b.cfg.RaceProbability, b.r); err != nil {
		return err
	}
	if b.hold, err = race.NewHoldGenerator(b.cfg.HoldDistribution, b.cfg.Operation()); err != nil {
		return err
	}
	b.token = uuid.NewString()
	if err := b.rv.Put(configs.RunTokenFile, b.token); err != nil {
		return err
	}
	if err := b.rv.PutPid(configs.BackgroundPidFile, b.self); err != nil {
		return err
	}
	logrus.Infof("background %d: token %s, %d of %d items contended", b.self, b.token, b.schedule.Count(), b.schedule.Len())
	return nil
}

func (b *Background) WarmUp(ctx context.Context) error {
	if !b.cfg.WarmUp {
		return nil
	}
	err := b.store.Write(ctx, b.token+configs.BackgroundWarmUp)
	if err != nil && !errors.Is(err, utils.ErrUniquenessConflict) {
		return fmt.Errorf("warm-up: %w", err)
	}
	return nil
}

func (b *Background) awaitPeer(ctx context.Context) error {
	var err error
	b.peer, err = b.rv.BlockingGetInt(ctx, configs.ForegroundPidFile)
	if err == nil {
		logrus.Infof("background %d: foreground %d", b.self, b.peer)
	}
	return err
}

func (b *Background) ShouldContinueWork() bool {
	return b.index < b.schedule.Len()
}

// LockNextIfNecessary answers one wake. On a contended item the driver is
// woken while the record lock is held.
func (b *Background) LockNextIfNecessary(ctx context.Context) error {
	wake := func() error { return b.waker.Wake(b.peer) }
	var err error
	if b.schedule.ShouldContend(b.index) {
		login := b.token + strconv.Itoa(b.index)
		hold := time.Duration(b.hold.Next(b.r)) * time.Microsecond
		configs.DPrintf("item %d: contending on %s for %v", b.index, login, hold)
		st := time.Now()
		err = b.engine.ExecuteBackgroundOperation(ctx, login, hold, wake)
		configs.TPrintf("item %d: released %s after %v", b.index, login, time.Since(st))
	} else {
		err = wake()
	}
	if err != nil {
		return fmt.Errorf("item %d: %w", b.index, err)
	}
	b.index++
	return nil
}

func (b *Background) Run(ctx context.Context) error {
	if err := b.Initialize(ctx); err != nil {
		return err
	}
	if err := b.WarmUp(ctx); err != nil {
		return err
	}
	if err := b.awaitPeer(ctx); err != nil {
		return err
	}
	// the first wake also waits for the driver to finish its own rendezvous
	// reads and warm-up
	limit := b.cfg.IdleLoss()
	if limit > 0 {
		limit += 2 * b.rv.Interval()
	}
	for b.ShouldContinueWork() {
		err := wakeup.SuspendUntil(ctx, func() bool { return !b.mailbox.TakeWork() }, b.mailbox.Notified(), b.cfg.Poll(), limit)
		if err != nil {
			return err
		}
		limit = b.cfg.IdleLoss()
		if err := b.LockNextIfNecessary(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CleanUp removes the token and pid files. It may be called any number of
// times.
func (b *Background) CleanUp() error {
	return b.rv.Cleanup()
}
