// Package provision converges target hosts' crontabs to a playbook's
// declared job set: name-keyed upsert of enabled jobs, garbage collection
// of managed entries no longer declared, and the MAILTO environment
// variable for failure mail.
package provision

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/cronverge/internal/crontab"
	"github.com/edvin/cronverge/internal/inventory"
	"github.com/edvin/cronverge/internal/model"
	"github.com/edvin/cronverge/internal/playbook"
	"github.com/edvin/cronverge/internal/runner"
)

// RunnerFactory opens a runner for one inventory host.
type RunnerFactory func(ctx context.Context, host inventory.Host) (runner.Runner, error)

// Options controls a single provisioning pass.
type Options struct {
	// Forks bounds how many hosts converge concurrently. Within one host
	// the pass stays sequential, so each crontab has a single writer.
	Forks int
	// DryRun computes the diff without writing anything back.
	DryRun bool
}

// Provisioner applies playbooks to hosts.
type Provisioner struct {
	logger    zerolog.Logger
	newRunner RunnerFactory
}

// New creates a provisioner.
func New(logger zerolog.Logger, factory RunnerFactory) *Provisioner {
	return &Provisioner{
		logger:    logger.With().Str("component", "provisioner").Logger(),
		newRunner: factory,
	}
}

// Apply converges every host to the playbook's declared state. Host
// failures (unreachable, escalation denied, write refused) are recorded in
// the report rather than aborting the run; the remaining hosts still
// converge.
func (p *Provisioner) Apply(ctx context.Context, pb *playbook.Playbook, hosts []inventory.Host, opts Options) (*model.RunReport, error) {
	forks := opts.Forks
	if forks < 1 {
		forks = 1
	}

	report := &model.RunReport{
		RunID:     uuid.NewString(),
		Playbook:  pb.Name,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
		Hosts:     make([]model.HostResult, len(hosts)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(forks)
	for i, h := range hosts {
		g.Go(func() error {
			report.Hosts[i] = p.applyHost(gctx, pb, h, opts.DryRun)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now()
	return report, nil
}

func (p *Provisioner) applyHost(ctx context.Context, pb *playbook.Playbook, host inventory.Host, dryRun bool) model.HostResult {
	log := p.logger.With().
		Str("host", host.Name).
		Str("user", pb.BecomeUser).
		Logger()

	res := model.HostResult{Host: host.Name}

	r, err := p.newRunner(ctx, host)
	if err != nil {
		res.Error = err.Error()
		log.Error().Err(err).Msg("connect failed")
		return res
	}
	defer r.Close()

	raw, err := r.ReadCrontab(ctx, pb.BecomeUser)
	if err != nil {
		res.Error = err.Error()
		log.Error().Err(err).Msg("read crontab failed")
		return res
	}

	tab := crontab.Parse(raw)
	before := tab.Render()
	now := time.Now()

	event := func(kind, name, action, detail string) {
		res.Events = append(res.Events, model.ChangeEvent{
			Timestamp: now,
			Host:      host.Name,
			Kind:      kind,
			Name:      name,
			Action:    action,
			Detail:    detail,
		})
	}

	if email := pb.Vars["cron_email"]; email != "" {
		event(model.KindEnv, "MAILTO", tab.SetEnv("MAILTO", email), "")
	}

	keep := make(map[string]bool)
	for _, j := range pb.Enabled() {
		keep[j.Name] = true
		action := tab.Upsert(j.Name, j.Schedule(), j.Command)
		detail := ""
		if dryRun && action != model.ActionUnchanged {
			if next, err := nextRun(j.Schedule(), now); err == nil {
				detail = "next run " + next.Format(time.RFC3339)
			}
		}
		event(model.KindJob, j.Name, action, detail)
	}

	for _, name := range tab.Prune(keep) {
		event(model.KindJob, name, model.ActionRemoved, "")
	}

	after := tab.Render()
	res.Changed = after != before

	if res.Changed && !dryRun {
		if err := r.WriteCrontab(ctx, pb.BecomeUser, after); err != nil {
			res.Error = err.Error()
			log.Error().Err(err).Msg("write crontab failed")
			return res
		}
	}

	log.Info().
		Bool("changed", res.Changed).
		Bool("dry_run", dryRun).
		Int("events", len(res.Events)).
		Msg("host converged")
	return res
}

// nextRun computes the next firing of a five-field schedule after from.
func nextRun(schedule string, from time.Time) (time.Time, error) {
	s, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(from), nil
}
