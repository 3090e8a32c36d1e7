package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"tvetl/internal/config"
	"tvetl/internal/metrics"
	"tvetl/internal/pipeline"
	"tvetl/internal/query"

	// register all backends with the storage factory.
	_ "tvetl/internal/storage/all"
)

// main loads the environment and pipeline config, installs a metrics backend
// and runs the requested stage once, or on a cron schedule.
func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath           string
		envFile           string
		stageFlg          string
		metricsBackendFlg string
		pushGatewayURLFlg string
		schedule          string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config JSON path (empty uses built-in defaults)")
	flag.StringVar(&envFile, "env", ".env", "dotenv file loaded before the config; missing is fine")
	flag.StringVar(&stageFlg, "stage", "all", "stage to run: extract, transform, load, query or all")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&schedule, "schedule", "", `cron spec for repeated runs, e.g. "0 3 * * *" or "@daily"`)
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", envFile, err)
		return 1
	}

	p, err := loadPipeline(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	config.ApplyEnv(&p, os.Getenv)

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(os.Stderr, "configuration is invalid: %s\n", describePath(cfgPath))
		return 1
	}
	if validate {
		fmt.Fprintf(os.Stderr, "configuration is valid: %s\n", describePath(cfgPath))
		return 0
	}

	stage, err := pipeline.ParseStage(stageFlg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if *verbose {
		log.Printf("pipeline: source=%s staging=%s(%s) storage=%s queries=%d",
			p.Source.Kind, p.Staging.Dir, p.Staging.Format, p.Storage.Kind, len(p.Queries))
	}

	backendName := pick(metricsBackendFlg, os.Getenv("METRICS_BACKEND"))
	b, err := newMetricsBackend(backendName, p.Job, pick(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL")), os.Getenv("DD_AGENT_ADDR"))
	if err != nil {
		log.Printf("metrics: %v; metrics disabled", err)
		b = nil
	}
	if b != nil {
		log.Printf("metrics: backend=%s job_name=%s", backendName, p.Job)
		metrics.SetBackend(b)
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if schedule == "" {
		if err := runOnce(ctx, p, stage, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	// Pushgateway keeps only the last push, so scheduled runs push after
	// each run; Datadog streams as it goes and is flushed once at exit.
	pushEach := backendName == "pushgateway" && b != nil
	if err := runScheduled(ctx, schedule, func() {
		if err := runOnce(ctx, p, stage, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if pushEach {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return 0
}

// loadPipeline decodes path over the defaults, or returns the defaults when
// path is empty.
func loadPipeline(path string) (config.Pipeline, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// runOnce executes one run under the configured lock file and prints its
// report to w.
func runOnce(ctx context.Context, p config.Pipeline, stage pipeline.Stage, w io.Writer) error {
	if p.Runtime.LockFile != "" {
		release, err := acquireLock(p.Runtime.LockFile)
		if err != nil {
			return err
		}
		defer release()
	}

	start := time.Now()
	rep, err := pipeline.New(p).Run(ctx, stage)
	if rep != nil {
		if perr := printReport(w, rep); perr != nil {
			log.Printf("print report: %v", perr)
		}
	}
	if err != nil {
		return err
	}
	log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// runScheduled runs fn on every tick of spec until ctx is done. Ticks that
// fire while a run is still going are skipped.
func runScheduled(ctx context.Context, spec string, fn func()) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	log.Printf("scheduler: started spec=%q", spec)

	<-ctx.Done()
	log.Printf("scheduler: stopping, waiting for the running job")
	<-c.Stop().Done()
	return nil
}

func printReport(w io.Writer, rep *pipeline.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", rep.RunID)
	if rep.Records > 0 {
		fmt.Fprintf(tw, "records\t%d\n", rep.Records)
	}
	for _, name := range []string{"shows", "episodes", "genres"} {
		if n, ok := rep.Tables[name]; ok {
			fmt.Fprintf(tw, "%s\t%d\n", name, n)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(rep.Queries) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return query.Print(w, rep.Queries)
}

func describePath(p string) string {
	if p == "" {
		return "(defaults)"
	}
	return p
}

func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
