package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/sable-labs/katana/cli/tui"
	"github.com/sable-labs/katana/config"
	"github.com/sable-labs/katana/engine"
	"github.com/sable-labs/katana/finder"
	"github.com/sable-labs/katana/lode"
	"github.com/sable-labs/katana/log"
	"github.com/sable-labs/katana/monitor"
	"github.com/sable-labs/katana/monitor/logmonitor"
	"github.com/sable-labs/katana/monitor/redis"
	"github.com/sable-labs/katana/monitor/webhook"
	"github.com/sable-labs/katana/monitor/wire"
	"github.com/sable-labs/katana/unit"
	"github.com/sable-labs/katana/units/download"

	_ "github.com/sable-labs/katana/units/railfence"
	_ "github.com/sable-labs/katana/units/strings"
)

// registrarRef forwards unit.Registrar calls to a target set after
// construction, breaking the Finder/Manager construction cycle: the
// Finder needs a Registrar at construction time, but the only Registrar
// implementation (engine.Manager) needs a Finder at its own construction
// time.
type registrarRef struct {
	target unit.Registrar
}

func (r *registrarRef) RegisterArtifact(u unit.Unit, path string, recurse bool) {
	r.target.RegisterArtifact(u, path, recurse)
}
func (r *registrarRef) RegisterData(u unit.Unit, data any, recurse bool) {
	r.target.RegisterData(u, data, recurse)
}
func (r *registrarRef) RegisterFlag(u unit.Unit, flag string) {
	r.target.RegisterFlag(u, flag)
}
func (r *registrarRef) Queue(u unit.Unit) {
	r.target.Queue(u)
}

// Exit codes. Unlike the teacher's run command, katana eval has no
// script/executor layer to distinguish failures from, so the space is
// smaller: a clean run (flag found or queue drained) is always 0, and
// every setup/runtime failure is 1.
const (
	exitSuccess = 0
	exitError   = 1
)

// EvalCommand returns the eval command: seed one or more targets and run
// the scheduler to completion, a timeout, or an interrupt.
func EvalCommand() *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Seed one or more targets and evaluate them to completion",
		UsageText: `katana eval --manifest units.yaml --config katana.ini --target "ROT13 flag" [options]

EXAMPLES:
  # Evaluate a single inline target
  katana eval --manifest units.yaml --target "WECRLTEERDSOEEFEAOCAIVDEN"

  # Evaluate a target read from a file, with an event log on disk
  katana eval --manifest units.yaml --target-file ./challenge.bin --events ./results/events.msgpack

  # Evaluate with a wall-clock timeout and a live dashboard
  katana eval --manifest units.yaml --target-file ./challenge.bin --timeout 30s --watch`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to an INI config file (defaults to built-in [manager] defaults)"},
			&cli.StringFlag{Name: "manifest", Usage: "Path to the units.yaml manifest", Required: true},
			&cli.StringSliceFlag{Name: "target", Usage: "An inline target payload (repeatable)"},
			&cli.StringFlag{Name: "target-file", Usage: "Path to a file whose contents become a target payload"},
			&cli.DurationFlag{Name: "timeout", Usage: "Wall-clock timeout for the run (0 = no timeout)"},
			&cli.BoolFlag{Name: "watch", Usage: "Show a live dashboard of scheduler activity while the run is in progress"},
			&cli.StringFlag{Name: "events", Usage: "Write a msgpack event log to this path (truncating any existing file) alongside the configured monitor"},
			&cli.StringFlag{Name: "webhook-url", Usage: "POST every event to this URL as JSON"},
			&cli.StringFlag{Name: "redis-url", Usage: "PUBLISH every event to this Redis pub/sub URL"},
			&cli.StringFlag{Name: "proxy-pool", Usage: "Name of a [proxy.<name>] pool section for the download unit to use"},
			&cli.StringFlag{Name: "artifact-root", Usage: "Filesystem root to persist downloaded artifacts under (artifacts are not persisted when unset)"},
		},
		Action: evalAction,
	}
}

func evalAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	manifest, err := finder.LoadManifest(c.String("manifest"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	targets, err := collectTargets(c)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	mon, closeMon, err := buildMonitor(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	defer closeMon()

	if err := configureDownloadUnit(c, cfg); err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	// The Finder needs a Registrar, and the Manager (the Registrar) needs
	// a Finder: tie the knot with a forwarding indirection set once the
	// Manager exists, rather than constructing either twice.
	ref := &registrarRef{}
	find := finder.New(manifest, cfg, ref)
	eng := engine.New(cfg, find, mon)
	ref.target = eng

	if err := eng.Start(); err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	for _, t := range targets {
		if _, err := eng.QueueTarget(t, nil); err != nil {
			return cli.Exit(err.Error(), exitError)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	var timeout *time.Duration
	if d := c.Duration("timeout"); d > 0 {
		timeout = &d
	}

	var clean bool
	if c.Bool("watch") {
		clean, err = runWithWatch(eng, timeout, interrupt)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
	} else {
		clean = eng.Join(timeout, interrupt)
	}

	printSummary(eng.Stats(), clean)
	if !clean {
		return cli.Exit("run timed out before draining", exitError)
	}
	return nil
}

// runWithWatch runs Join on a background goroutine while a live dashboard
// polls the Manager's stats in the foreground, returning once either the
// dashboard reports Join's result or the user quits the dashboard early.
func runWithWatch(eng *engine.Manager, timeout *time.Duration, interrupt <-chan os.Signal) (bool, error) {
	done := make(chan bool, 1)
	go func() {
		done <- eng.Join(timeout, interrupt)
		close(done)
	}()
	return tui.RunWatch(eng, done)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

func collectTargets(c *cli.Context) ([][]byte, error) {
	var out [][]byte
	for _, t := range c.StringSlice("target") {
		out = append(out, []byte(t))
	}
	if path := c.String("target-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read target file %q: %w", path, err)
		}
		out = append(out, data)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("eval requires at least one of --target or --target-file")
	}
	return out, nil
}

// buildMonitor assembles the monitor stack: logmonitor is always present
// as the base sink, with an optional wire event log and/or webhook/redis
// sink fanned in alongside it via monitor.Multi.
func buildMonitor(c *cli.Context, cfg *config.Config) (monitor.Monitor, func(), error) {
	threads, _ := cfg.GetInt(config.ManagerSection, "threads", 1)
	maxDepth, _ := cfg.GetInt(config.ManagerSection, "max-depth", 10)
	logger := log.NewLogger(log.RunContext{RunID: runID(), Threads: threads, MaxDepth: maxDepth})
	sinks := []monitor.Monitor{logmonitor.New(logger)}
	closers := []func(){func() {}}

	if path := c.String("events"); path != "" {
		w, err := wire.Open(path)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, w)
		closers = append(closers, func() { _ = w.Close() })
	}

	if url := c.String("webhook-url"); url != "" {
		adapter, err := webhook.New(webhook.Config{URL: url})
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, webhook.NewMonitor(adapter, func(err error) {
			logger.Sugar().Warnf("webhook publish failed: %v", err)
		}))
	}

	if url := c.String("redis-url"); url != "" {
		adapter, err := redis.New(redis.Config{URL: url})
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, redis.NewMonitor(adapter, func(err error) {
			logger.Sugar().Warnf("redis publish failed: %v", err)
		}))
	}

	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}
	return monitor.Multi(sinks...), closeAll, nil
}

func configureDownloadUnit(c *cli.Context, cfg *config.Config) error {
	pool := c.String("proxy-pool")
	root := c.String("artifact-root")
	if pool == "" && root == "" {
		return nil
	}

	var store *lode.ArtifactStore
	if root != "" {
		s, err := lode.NewFSArtifactStore(root, "")
		if err != nil {
			return err
		}
		store = s
	}
	return download.Configure(cfg, pool, store)
}

func printSummary(stats engine.Stats, clean bool) {
	fmt.Printf("units evaluated: %d\n", stats.UnitsEvaluated)
	fmt.Printf("flags found:     %d\n", stats.FlagsFound)
	fmt.Printf("exceptions:      %d\n", stats.Exceptions)
	fmt.Printf("depth limit hits:%d\n", stats.DepthLimitHits)
	if !clean {
		fmt.Println("status:          timed out")
	} else {
		fmt.Println("status:          complete")
	}
}

// runID derives a unique identifier for this invocation's log context,
// so lines from concurrent katana eval runs on the same host never
// collide when grepped out of a shared log stream.
func runID() string {
	return uuid.NewString()
}
