package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/edvin/cronverge/internal/config"
	"github.com/edvin/cronverge/internal/inventory"
	"github.com/edvin/cronverge/internal/logging"
	"github.com/edvin/cronverge/internal/model"
	"github.com/edvin/cronverge/internal/playbook"
	"github.com/edvin/cronverge/internal/provision"
	"github.com/edvin/cronverge/internal/runner"
	"github.com/edvin/cronverge/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "apply":
		runApply(os.Args[2:], false)
	case "plan":
		runApply(os.Args[2:], true)
	case "validate":
		runValidate(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runApply(args []string, dryRun bool) {
	name := "apply"
	if dryRun {
		name = "plan"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	playbookPath := fs.String("p", "", "Path to playbook YAML file (required)")
	invPath := fs.String("i", "", "Path to inventory YAML file")
	forks := fs.Int("forks", 1, "How many hosts to converge concurrently")
	connection := fs.String("connection", "ssh", `Transport: "ssh" or "local"`)
	fs.Parse(args)

	cfg, logger, pb, hosts := load(fs, *playbookPath, *invPath)

	prov := provision.New(logger, newRunnerFactory(logger, cfg, *connection))
	report, err := prov.Apply(context.Background(), pb, hosts, provision.Options{
		Forks:  *forks,
		DryRun: dryRun,
	})
	if err != nil {
		fatalf("Error: %v", err)
	}

	printReport(report, dryRun)
	for _, h := range report.Hosts {
		if h.Failed() {
			os.Exit(1)
		}
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	playbookPath := fs.String("p", "", "Path to playbook YAML file (required)")
	fs.Parse(args)

	if *playbookPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -p flag is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Error: %v", err)
	}
	pb, err := playbook.Load(logging.NewLogger(cfg), *playbookPath)
	if err != nil {
		fatalf("Error: %v", err)
	}

	for _, j := range pb.Jobs {
		state := "enabled"
		if j.Disabled {
			state = "disabled"
		}
		fmt.Printf("%-10s %-14s %s\n", state, j.Schedule(), j.Name)
	}
	fmt.Printf("Playbook OK: %d jobs (%d enabled) for user %s on group %s\n",
		len(pb.Jobs), len(pb.Enabled()), pb.BecomeUser, pb.Hosts)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	playbookPath := fs.String("p", "", "Path to playbook YAML file (required)")
	invPath := fs.String("i", "", "Path to inventory YAML file")
	listen := fs.String("listen", "", "HTTP listen address (default from HTTP_LISTEN_ADDR)")
	interval := fs.Duration("interval", 0, "Converge interval (default from APPLY_INTERVAL)")
	forks := fs.Int("forks", 1, "How many hosts to converge concurrently")
	connection := fs.String("connection", "ssh", `Transport: "ssh" or "local"`)
	fs.Parse(args)

	cfg, logger, pb, hosts := load(fs, *playbookPath, *invPath)
	if *listen == "" {
		*listen = cfg.HTTPListenAddr
	}
	if *interval == 0 {
		*interval = cfg.ApplyInterval
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	prov := provision.New(logger, newRunnerFactory(logger, cfg, *connection))
	rec := provision.NewReconciler(logger, prov, pb, hosts, *interval, provision.Options{Forks: *forks}, reg)
	srv := server.New(logger, rec, reg)

	httpSrv := &http.Server{
		Addr:    *listen,
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go rec.RunLoop(ctx)

	go func() {
		logger.Info().Str("listen", *listen).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// load resolves config, logger, playbook and target hosts for a command.
func load(fs *flag.FlagSet, playbookPath, invPath string) (*config.Config, zerolog.Logger, *playbook.Playbook, []inventory.Host) {
	if playbookPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -p flag is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Error: %v", err)
	}
	logger := logging.NewLogger(cfg)

	pb, err := playbook.Load(logger, playbookPath)
	if err != nil {
		fatalf("Error: %v", err)
	}

	var hosts []inventory.Host
	if pb.Hosts == inventory.LocalGroup {
		hosts, _ = (&inventory.Inventory{}).HostsFor(inventory.LocalGroup)
	} else {
		if invPath == "" {
			fatalf("Error: -i flag is required for host group %q", pb.Hosts)
		}
		inv, err := inventory.Load(invPath)
		if err != nil {
			fatalf("Error: %v", err)
		}
		hosts, err = inv.HostsFor(pb.Hosts)
		if err != nil {
			fatalf("Error: %v", err)
		}
	}

	return cfg, logger, pb, hosts
}

// newRunnerFactory picks the transport per host: SSH for inventory hosts,
// direct exec for the local pseudo-host or -connection local.
func newRunnerFactory(logger zerolog.Logger, cfg *config.Config, connection string) provision.RunnerFactory {
	return func(ctx context.Context, h inventory.Host) (runner.Runner, error) {
		if connection == "local" || h.Address == "local" {
			return runner.NewLocal(logger), nil
		}
		keyPath := h.KeyPath
		if keyPath == "" {
			keyPath = cfg.SSHKeyPath
		}
		return runner.DialSSH(ctx, logger, runner.SSHOptions{
			Address:  h.Address,
			Port:     h.Port,
			User:     h.User,
			KeyPath:  keyPath,
			Password: cfg.SSHPassword,
			Timeout:  cfg.SSHTimeout,
		})
	}
}

func printReport(report *model.RunReport, dryRun bool) {
	for _, h := range report.Hosts {
		if h.Failed() {
			fmt.Printf("host %s: FAILED: %s\n", h.Host, h.Error)
			continue
		}
		counts := map[string]int{}
		for _, e := range h.Events {
			counts[e.Action]++
		}
		status := "ok"
		if h.Changed {
			status = "changed"
		}
		fmt.Printf("host %s: %s (%d created, %d updated, %d removed, %d unchanged)\n",
			h.Host, status,
			counts[model.ActionCreated], counts[model.ActionUpdated],
			counts[model.ActionRemoved], counts[model.ActionUnchanged])
		if dryRun {
			for _, e := range h.Events {
				if e.Action == model.ActionUnchanged {
					continue
				}
				fmt.Printf("  %s %s %q", e.Action, e.Kind, e.Name)
				if e.Detail != "" {
					fmt.Printf(" (%s)", e.Detail)
				}
				fmt.Println()
			}
		}
	}

	verb := "Apply"
	if dryRun {
		verb = "Plan"
	}
	fmt.Printf("%s complete: run %s, %d host(s)\n", verb, report.RunID, len(report.Hosts))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  cronverge apply    -p <playbook.yaml> -i <inventory.yaml> [-forks N] [-connection ssh|local]
  cronverge plan     -p <playbook.yaml> -i <inventory.yaml> [-forks N] [-connection ssh|local]
  cronverge validate -p <playbook.yaml>
  cronverge serve    -p <playbook.yaml> -i <inventory.yaml> [-interval 5m] [-listen :9115]

Commands:
  apply     Converge the target hosts' crontabs to the playbook
  plan      Show what apply would change without writing anything
  validate  Check the playbook and print its job table
  serve     Re-converge on an interval and expose health/metrics/status over HTTP

Flags:
  -p string            Path to playbook YAML file (required)
  -i string            Path to inventory YAML file (required unless hosts: local)
  -forks int           Hosts to converge concurrently (default 1)
  -connection string   Transport, "ssh" or "local" (default "ssh")
  -interval duration   Serve-mode converge interval (default APPLY_INTERVAL or 5m)
  -listen string       Serve-mode HTTP address (default HTTP_LISTEN_ADDR or :9115)`)
}
