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
	"strconv"

	"github.com/sirupsen/logrus"
)

// Foreground is the driver: it wakes the interferer before every item, waits
// for its answer and then runs the configured strategy.
type Foreground struct {
	cfg     *configs.Config
	store   storage.Store
	engine  *race.Engine
	rv      *rendezvous.Store
	waker   wakeup.Waker
	mailbox *wakeup.Mailbox
	self    int
	peer    int
	token   string
	index   int
	stat    *utils.Stat
	journal *storage.ResultLog
	logPath string
}

func NewForeground(cfg *configs.Config, store storage.Store, rv *rendezvous.Store, waker wakeup.Waker, mailbox *wakeup.Mailbox, self int) *Foreground {
	return &Foreground{
		cfg:     cfg,
		store:   store,
		engine:  race.NewEngine(store),
		rv:      rv,
		waker:   waker,
		mailbox: mailbox,
		self:    self,
		stat:    utils.NewStat(cfg.Strategy),
	}
}

// Initialize publishes the driver's pid and waits for the run token and the
// interferer's pid.
func (f *Foreground) Initialize(ctx context.Context) error {
	if err := f.rv.PutPid(configs.ForegroundPidFile, f.self); err != nil {
		return err
	}
	token, err := f.rv.BlockingGet(ctx, configs.RunTokenFile)
	if err != nil {
		return err
	}
	f.token = token
	f.peer, err = f.rv.BlockingGetInt(ctx, configs.BackgroundPidFile)
	if err != nil {
		return err
	}
	logrus.Infof("foreground %d: token %s, background %d, %s strategy", f.self, f.token, f.peer, f.cfg.Strategy)
	if f.cfg.JournalDir != "" {
		f.journal, err = storage.OpenResultLog(f.cfg.JournalDir, f.token)
		if err != nil {
			return err
		}
		f.logPath = f.journal.Path()
	}
	return nil
}

func (f *Foreground) WarmUp(ctx context.Context) error {
	if !f.cfg.WarmUp {
		return nil
	}
	err := f.store.Write(ctx, f.token+configs.ForegroundWarmUp)
	if err != nil && !errors.Is(err, utils.ErrUniquenessConflict) {
		return fmt.Errorf("warm-up: %w", err)
	}
	if f.cfg.IsPessimistic() {
		threshold, err := f.engine.Calibrate(ctx, f.token+configs.ForegroundWarmUp, configs.CalibrationRounds)
		if err != nil {
			return fmt.Errorf("warm-up: %w", err)
		}
		logrus.Infof("foreground %d: lock waits above %v count as contended", f.self, threshold)
	}
	return nil
}

func (f *Foreground) ShouldContinueWork() bool {
	return f.index < f.cfg.Items
}

// ProcessNext runs one item. The strategy never starts before the
// interferer answered the wake for the same index.
func (f *Foreground) ProcessNext(ctx context.Context) error {
	f.mailbox.Arm()
	if err := f.waker.Wake(f.peer); err != nil {
		return err
	}
	err := wakeup.SuspendUntil(ctx, f.mailbox.IsWaiting, f.mailbox.Notified(), f.cfg.Poll(), f.cfg.PeerLoss())
	if err != nil {
		if a, ok := f.waker.(interface{ Alive(int) bool }); ok && errors.Is(err, utils.ErrPeerLost) {
			configs.Warn(!a.Alive(f.peer), fmt.Sprintf("background %d is alive but did not answer item %d", f.peer, f.index))
		}
		return err
	}

	login := f.token + strconv.Itoa(f.index)
	var res race.TimeResult
	if f.cfg.IsPessimistic() {
		res, err = f.engine.RunPessimistic(ctx, f.cfg.Operation(), login, f.cfg.Lock())
	} else {
		res, err = f.engine.RunOptimistic(ctx, f.cfg.Operation(), login, f.cfg.Refresh())
	}
	if err != nil {
		return fmt.Errorf("item %d: %w", f.index, err)
	}

	info := &utils.Info{
		Index:     f.index,
		Login:     login,
		Strategy:  f.cfg.Strategy,
		Actual:    res.ActualTime,
		Estimated: res.EstimatedTime,
		LockWait:  res.LockWait,
		Conflict:  res.Conflict,
		Contended: res.Contended,
	}
	f.stat.Append(info)
	configs.DPrintf("item %d: %s", f.index, configs.JToString(info))
	if f.journal != nil {
		if err := f.journal.Append(info); err != nil {
			return err
		}
	}
	f.index++
	return nil
}

// Run drives the whole experiment. CleanUp is left to the caller so it runs
// on every exit path.
func (f *Foreground) Run(ctx context.Context) error {
	if err := f.Initialize(ctx); err != nil {
		return err
	}
	if err := f.WarmUp(ctx); err != nil {
		return err
	}
	for f.ShouldContinueWork() {
		if err := f.ProcessNext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CleanUp flushes the journal and removes the driver's rendezvous files. It
// may be called any number of times.
func (f *Foreground) CleanUp() error {
	var res error
	if f.journal != nil {
		res = f.journal.Close()
		f.journal = nil
	}
	if err := f.rv.Cleanup(); err != nil && res == nil {
		res = err
	}
	return res
}

func (f *Foreground) Report() *Report {
	return &Report{
		Mode:    f.cfg.ModeName(),
		Token:   f.token,
		Journal: f.logPath,
		Summary: f.stat.Summary(),
	}
}

func (f *Foreground) Indices() []int {
	return f.stat.Indices()
}
