// Command carstom runs a wheel placement session against the simulated AR
// runtime, either replaying a YAML scenario or reading commands from stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/ar/mainthread"
	"github.com/banshee-data/carstom/internal/ar/monitor"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/simulator"
	"github.com/banshee-data/carstom/internal/command"
	"github.com/banshee-data/carstom/internal/eventmux"
	"github.com/banshee-data/carstom/internal/monitoring"
	"github.com/banshee-data/carstom/internal/recorder"
	"github.com/banshee-data/carstom/internal/security"
	"github.com/banshee-data/carstom/internal/timeutil"
	"github.com/banshee-data/carstom/internal/version"
)

var (
	scenarioPath = flag.String("scenario", "", "YAML scenario to replay (reads commands from stdin when empty)")
	configPath   = flag.String("config", "", "JSON tuning config (defaults to "+defaultConfigHint+" when present)")
	recordPath   = flag.String("record", "", "SQLite journal to record the session to (.db)")
	plotsDir     = flag.String("plots", "", "Directory to write transform plots to when the session ends")
	listen       = flag.String("listen", "", "Debug HTTP listen address, e.g. localhost:8090")
	modelURL     = flag.String("model-url", "", "Model server base URL (uses the built-in chroma key model when empty)")
	modelName    = flag.String("model-name", "wheel-segmentation", "Served model name")
	noModel      = flag.Bool("no-model", false, "Disable wheel detection")
	realtime     = flag.Bool("realtime", false, "Pace scenario replay at wall-clock speed")
	fps          = flag.Int("fps", 30, "Camera frame rate for interactive sessions")
	logOps       = flag.String("log-ops", "stderr", "Ops log stream: stderr, stdout, off or a .log file")
	logDiag      = flag.String("log-diag", "stderr", "Diag log stream: stderr, stdout, off or a .log file")
	logTrace     = flag.String("log-trace", "off", "Trace log stream: stderr, stdout, off or a .log file")
	showVersion  = flag.Bool("version", false, "Print the build version and exit")
)

const (
	mainQueueSize  = 256
	workerSize     = 4
	recentEvents   = 64
	tailBuffer     = 64
	commandBuffer  = 16
	shutdownPeriod = time.Second
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.Current())
		return
	}

	streams, closeLogs, err := monitoring.OpenStreams(*logOps, *logDiag, *logTrace)
	if err != nil {
		log.Fatalf("failed to open log streams: %v", err)
	}
	defer closeLogs()
	streams.Apply()

	if err := run(); err != nil {
		log.Fatalf("session failed: %v", err)
	}
}

func run() error {
	tuning, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	coordCfg, err := tuning.CoordinatorConfig()
	if err != nil {
		return fmt.Errorf("invalid tuning config: %w", err)
	}

	var scenario *command.Scenario
	world := simulator.DefaultWorld()
	if *scenarioPath != "" {
		if scenario, err = command.LoadScenario(*scenarioPath); err != nil {
			return err
		}
		world = scenario.World
	}
	if *fps < 1 {
		return fmt.Errorf("fps must be positive, got %d", *fps)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, finish := context.WithCancel(ctx)
	defer finish()

	root := scenegraph.NewNode("root")
	sim, err := simulator.New(world, root)
	if err != nil {
		return fmt.Errorf("failed to build world: %w", err)
	}
	model := buildModel(ctx, tuning, *modelURL, *modelName, *noModel)

	clock := timeutil.RealClock{}
	mainQ := mainthread.NewQueue("main", mainQueueSize)
	worker := mainthread.NewWorker(workerSize)
	coord := coordinator.New(coordinator.Options{
		Config:  coordCfg,
		Session: sim,
		Nodes:   sim,
		Root:    root,
		Model:   model,
		Worker:  worker,
		Main:    mainQ,
		Clock:   clock,
	})
	sessionID := coord.State().ID
	monitoring.Logf("session %s started (%s)", sessionID, version.Current())

	status := monitor.NewStatusStore(coord.Status, recentEvents)
	plotter := monitor.NewTransformPlotter(tuning.GetPlotHistory())
	tail := eventmux.New(nil)
	coord.Subscribe(status)
	coord.Subscribe(plotter)
	coord.Subscribe(coordinator.ObserverFunc(func(e coordinator.Event) {
		tail.Publish(ctx, formatEvent(e))
	}))
	status.Refresh()

	var journal *recorder.Journal
	var rec *recorder.Recorder
	if *recordPath != "" {
		if err := security.ValidateOutputFile(*recordPath, ".db", ".sqlite"); err != nil {
			return fmt.Errorf("invalid journal path: %w", err)
		}
		if journal, err = recorder.OpenJournal(*recordPath); err != nil {
			return err
		}
		defer journal.Close()
		if err := journal.StartSession(ctx, sessionID, clock.Now(), sessionConfig{Build: version.Current(), Tuning: tuning}); err != nil {
			return err
		}
		rec = recorder.NewRecorder(journal, tuning.GetJournalBuffer())
		coord.Subscribe(rec)
	}

	runner := command.NewRunner(coord, sim)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(mainQ.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(worker.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(tail.Monitor(gctx)) })
	if rec != nil {
		g.Go(func() error { return rec.Run(context.Background()) })
		g.Go(func() error {
			<-gctx.Done()
			rec.Close()
			return nil
		})
	}
	if *listen != "" {
		mux := http.NewServeMux()
		monitor.NewServer(status, plotter).Attach(mux)
		tail.AttachDebugRoutes(mux)
		g.Go(func() error { return serveDebug(gctx, *listen, mux) })
	}

	endSession := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		if mainQ.Post(coord.Close) {
			mainQ.Sync(ctx)
		}
		finish()
	}

	if scenario != nil {
		g.Go(func() error {
			defer endSession()
			player := &command.Player{Runner: runner, Main: mainQ, Clock: clock, Realtime: *realtime}
			rep, err := player.Play(gctx, scenario)
			monitoring.Logf("scenario %q: %d frames, %d/%d steps applied, %d failed",
				scenario.Name, rep.Frames, rep.Applied, rep.Steps, rep.Failed)
			return ignoreCanceled(err)
		})
	} else {
		runInteractive(gctx, g, runner, mainQ, clock, endSession)
	}

	err = g.Wait()
	coord.Close()
	tail.Close()

	if *plotsDir != "" {
		if n, perr := plotter.GeneratePlots(*plotsDir); perr != nil {
			monitoring.Logf("failed to write plots: %v", perr)
		} else {
			monitoring.Logf("wrote %d plots to %s", n, *plotsDir)
		}
	}
	if journal != nil {
		if eerr := journal.EndSession(context.Background(), sessionID, clock.Now()); eerr != nil {
			monitoring.Logf("failed to end journal session: %v", eerr)
		}
		written, dropped, failed := rec.Stats()
		monitoring.Logf("journal: %d events written, %d dropped, %d failed", written, dropped, failed)
	}
	executed, rejected := mainQ.Stats()
	monitoring.Logf("session %s ended: %d closures executed, %d rejected", sessionID, executed, rejected)
	return err
}

// runInteractive reads commands from stdin and renders frames at -fps until
// input ends.
func runInteractive(ctx context.Context, g *errgroup.Group, runner *command.Runner, mainQ *mainthread.Queue, clock timeutil.Clock, endSession func()) {
	input := eventmux.New(os.Stdin)
	_, lines := input.SubscribeLossless(commandBuffer)

	g.Go(func() error {
		err := input.Monitor(ctx)
		input.Close()
		return ignoreCanceled(err)
	})
	g.Go(func() error {
		// the session ends once every command read has been posted
		defer endSession()
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				cmd, err := command.Parse(line)
				if errors.Is(err, command.ErrEmpty) {
					continue
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				if cmd.Verb == command.VerbWait {
					select {
					case <-time.After(cmd.Wait):
					case <-ctx.Done():
						return nil
					}
					continue
				}
				mainQ.Post(func() {
					if _, err := runner.Apply(cmd); err != nil {
						fmt.Fprintf(os.Stderr, "error: %v\n", err)
					}
				})
			}
		}
	})
	g.Go(func() error {
		start := clock.Now()
		ticker := clock.NewTicker(timeutil.FrameInterval(*fps))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C():
				ts := clock.Since(start)
				mainQ.Post(func() { runner.Frame(ts) })
			}
		}
	})
}

func serveDebug(ctx context.Context, addr string, mux *http.ServeMux) error {
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("debug server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("debug server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("debug server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("debug server force close error: %v", err)
		}
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
