package commands

import (
	"context"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"hora/internal/config"
	"hora/pkg/logx"
)

var daemonPlanOnStart bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the planner on a cron cadence",
	Long: `Stays resident and re-plans on the configured cron schedule. The
config file is watched; edits apply to the next run without a restart.
Under systemd, readiness and watchdog notifications are emitted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx, a)
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonPlanOnStart, "plan-on-start", true, "run one planning pass immediately on startup")
	rootCmd.AddCommand(daemonCmd)
}

// daemonState holds the hot-swappable part of the daemon: the config
// snapshot cron jobs plan against.
type daemonState struct {
	mu  sync.RWMutex
	cfg *config.Config
}

func (d *daemonState) get() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *daemonState) set(cfg *config.Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func runDaemon(ctx context.Context, a *app) error {
	state := &daemonState{cfg: a.cfg}

	plan := func() {
		cfg := state.get()
		day, _ := resolveDay("", a.loc)
		if _, err := runPlan(ctx, a, cfg, day, false, false); err != nil {
			a.log.Error("scheduled plan failed", logx.Err(err))
		}
	}

	c := cron.New()
	entry, err := c.AddFunc(a.cfg.CronSpec(), plan)
	if err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	// config watch: swap the snapshot; recreate the cron entry when the
	// cadence itself changed
	go func() { _ = a.manager.Watch(ctx) }()
	sub := a.manager.Subscribe(1)
	defer a.manager.Unsubscribe(sub)

	if daemonPlanOnStart {
		plan()
	}

	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyReady)
	defer func() { _, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping) }()

	watchdog := watchdogTicker(ctx, a.log)
	if watchdog != nil {
		defer watchdog.Stop()
	}

	a.log.Info("daemon running", logx.String("cron", a.cfg.CronSpec()))
	for {
		select {
		case <-ctx.Done():
			a.log.Info("daemon stopping")
			return nil
		case cfg, ok := <-sub:
			if !ok {
				return nil
			}
			old := state.get()
			changed, attrs := config.SummarizeChange(old, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("applying config change",
				append([]logx.Field{logx.String("sections", strings.Join(changed, ","))}, attrs...)...)
			if !strings.EqualFold(old.Store.Path, cfg.Store.Path) {
				a.log.Warn("store.path changed; restart required to take effect")
			}
			if old.CronSpec() != cfg.CronSpec() {
				if id, err := c.AddFunc(cfg.CronSpec(), plan); err != nil {
					a.log.Warn("invalid cron spec; keeping previous cadence",
						logx.String("cron", cfg.CronSpec()), logx.Err(err))
				} else {
					c.Remove(entry)
					entry = id
				}
			}
			state.set(cfg)
		}
	}
}

// watchdogTicker pets the systemd watchdog at half its interval when
// one is configured; returns nil otherwise.
func watchdogTicker(ctx context.Context, log logx.Logger) *time.Ticker {
	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return nil
	}
	t := time.NewTicker(interval / 2)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog)
			}
		}
	}()
	log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))
	return t
}
