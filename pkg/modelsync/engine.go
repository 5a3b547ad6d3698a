// Package modelsync implements the catalog sync engine: it filters catalog
// entries by host capacity, pulls missing eligible models with a bounded
// retry policy and a disk-space gate, and optionally removes installed
// models that are no longer in the catalog.
package modelsync

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/llmkeeper/llmkeeper/pkg/catalog"
	"github.com/llmkeeper/llmkeeper/pkg/hostinfo"
	"github.com/llmkeeper/llmkeeper/pkg/logger"
	"github.com/llmkeeper/llmkeeper/pkg/modelmgr"
	"github.com/llmkeeper/llmkeeper/pkg/presenter"
)

const (
	// DefaultSpaceDivisor estimates a model's on-disk footprint as the
	// declared minimum disk requirement divided by this value. Inherited
	// heuristic; tune via Config.SpaceDivisor.
	DefaultSpaceDivisor = 20

	// DefaultRetryAttempts bounds pull retries. Set Attempts to 0 in
	// RetryConfig to retry until success.
	DefaultRetryAttempts = 10

	// DefaultRetryDelay is the pause between failed pull attempts.
	DefaultRetryDelay = 5 * time.Second
)

// ErrInsufficientSpace is returned when the operator declines to free disk
// space for a pending download.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// RetryConfig controls the pull retry policy. Attempts of 0 retries
// indefinitely with the configured delay, approximating the original
// operator scripts.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	Backoff  bool
}

// Config carries everything the engine needs besides its collaborators.
type Config struct {
	CatalogPath  string
	Cleanup      bool
	AssumeYes    bool
	DryRun       bool
	SpaceDivisor int
	Retry        RetryConfig
}

// Engine runs one catalog sync pass.
type Engine struct {
	cfg     Config
	manager modelmgr.Manager
	host    hostinfo.Prober
	ui      presenter.Presenter
}

// Result summarizes a sync run.
type Result struct {
	Eligible   []string
	Ineligible []string
	Downloaded []string
	Skipped    []string // already installed
	Removed    []string
	// RemovalFailures aggregates per-orphan removal errors; the run still
	// succeeds overall.
	RemovalFailures error
}

// NewEngine creates an engine, applying config defaults.
func NewEngine(cfg Config, manager modelmgr.Manager, host hostinfo.Prober, ui presenter.Presenter) *Engine {
	if cfg.SpaceDivisor <= 0 {
		cfg.SpaceDivisor = DefaultSpaceDivisor
	}
	if cfg.Retry.Attempts < 0 {
		cfg.Retry.Attempts = DefaultRetryAttempts
	}
	if cfg.Retry.Delay <= 0 {
		cfg.Retry.Delay = DefaultRetryDelay
	}

	return &Engine{
		cfg:     cfg,
		manager: manager,
		host:    host,
		ui:      ui,
	}
}

// Run executes the sync pass: eligibility filtering, downloads, and (when
// enabled) orphan cleanup. Catalog, capacity, and model-list failures are
// fatal preconditions; individual removal failures are reported and
// aggregated without failing the run.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	log := logger.G(ctx)

	entries, err := catalog.Load(e.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	capacity, err := e.host.Capacity(ctx)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]any{
		"ram_gb":            capacity.RAMGB,
		"disk_total_gb":     capacity.DiskTotalGB,
		"disk_available_gb": capacity.DiskAvailableGB,
	}).Debug("host capacity")

	installed, err := e.manager.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list installed models")
	}
	installedSet := make(map[string]bool, len(installed))
	for _, name := range installed {
		installedSet[name] = true
	}

	result := &Result{}
	var toFetch []catalog.Evaluation

	e.ui.Section("Catalog eligibility")
	for _, entry := range entries {
		eval := catalog.Evaluate(entry, capacity.RAMGB, capacity.DiskTotalGB)
		for _, axis := range eval.UnknownAxes {
			log.WithFields(map[string]any{
				"model":    entry.Model,
				"resource": axis,
			}).Warn("unparseable size requirement treated as none")
		}

		if !eval.Eligible() {
			result.Ineligible = append(result.Ineligible, entry.Model)
			e.ui.Warning(fmt.Sprintf("%s not eligible (%s)", entry.Model, eval.Reason()))
			continue
		}

		result.Eligible = append(result.Eligible, entry.Model)
		if installedSet[entry.Model] {
			result.Skipped = append(result.Skipped, entry.Model)
			e.ui.Info(fmt.Sprintf("%s already installed", entry.Model))
			continue
		}
		toFetch = append(toFetch, eval)
	}

	for _, eval := range toFetch {
		if e.cfg.DryRun {
			e.ui.Info(fmt.Sprintf("would pull %s", eval.Entry.Model))
			continue
		}
		if err := e.pull(ctx, eval); err != nil {
			return result, err
		}
		result.Downloaded = append(result.Downloaded, eval.Entry.Model)
		e.ui.Success(fmt.Sprintf("pulled %s", eval.Entry.Model))
	}

	if e.cfg.Cleanup {
		if err := e.removeOrphans(ctx, entries, installed, result); err != nil {
			return result, err
		}
	}

	e.ui.Separator()
	e.ui.Info(fmt.Sprintf("%d downloaded, %d already installed, %d not eligible",
		len(result.Downloaded), len(result.Skipped), len(result.Ineligible)))

	return result, nil
}

// pull downloads one model under the retry policy, re-checking disk space
// before every attempt.
func (e *Engine) pull(ctx context.Context, eval catalog.Evaluation) error {
	delayType := retry.DelayTypeFunc(retry.FixedDelay)
	if e.cfg.Retry.Backoff {
		delayType = retry.BackOffDelay
	}

	return retry.Do(
		func() error {
			if err := e.ensureSpace(ctx, eval); err != nil {
				return retry.Unrecoverable(err)
			}
			return e.manager.Pull(ctx, eval.Entry.Model)
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.cfg.Retry.Attempts)),
		retry.Delay(e.cfg.Retry.Delay),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithFields(map[string]any{
				"model":   eval.Entry.Model,
				"attempt": n + 1,
			}).Warn("pull failed, retrying")
		}),
	)
}

// ensureSpace blocks until available disk space covers the model's
// estimated footprint or the operator gives up. The estimate divides the
// declared minimum disk requirement by SpaceDivisor, the compressed
// artifact being a small fraction of the requirement.
func (e *Engine) ensureSpace(ctx context.Context, eval catalog.Evaluation) error {
	estimateGB := eval.RequiredDiskGB / e.cfg.SpaceDivisor

	for {
		capacity, err := e.host.Capacity(ctx)
		if err != nil {
			return err
		}
		if capacity.DiskAvailableGB >= estimateGB {
			return nil
		}

		question := fmt.Sprintf("Pulling %s needs about %dGB but only %dGB is available. Free up space and retry?",
			eval.Entry.Model, estimateGB, capacity.DiskAvailableGB)
		if e.cfg.AssumeYes || !e.ui.Confirm(question) {
			// Non-interactive runs cannot wait for the operator.
			return errors.Wrapf(ErrInsufficientSpace, "need %dGB, have %dGB for %s",
				estimateGB, capacity.DiskAvailableGB, eval.Entry.Model)
		}
	}
}

// removeOrphans deletes installed models absent from the catalog after a
// single confirmation. Per-item failures are reported and aggregated but do
// not stop the loop.
func (e *Engine) removeOrphans(ctx context.Context, entries []catalog.Entry, installed []string, result *Result) error {
	inCatalog := make(map[string]bool, len(entries))
	for _, entry := range entries {
		inCatalog[entry.Model] = true
	}

	var orphans []string
	for _, name := range installed {
		if !inCatalog[name] {
			orphans = append(orphans, name)
		}
	}
	if len(orphans) == 0 {
		e.ui.Info("no orphaned models to remove")
		return nil
	}

	e.ui.Section("Orphaned models")
	for _, name := range orphans {
		e.ui.Info(name)
	}

	if e.cfg.DryRun {
		e.ui.Info(fmt.Sprintf("would remove %d orphaned model(s)", len(orphans)))
		return nil
	}
	if !e.cfg.AssumeYes && !e.ui.Confirm(fmt.Sprintf("Remove %d orphaned model(s)?", len(orphans))) {
		e.ui.Info("skipping orphan removal")
		return nil
	}

	for _, name := range orphans {
		if err := e.manager.Remove(ctx, name); err != nil {
			result.RemovalFailures = multierror.Append(result.RemovalFailures, errors.Wrapf(err, "remove %s", name))
			e.ui.Error(err, fmt.Sprintf("removing %s", name))
			continue
		}
		result.Removed = append(result.Removed, name)
		e.ui.Success(fmt.Sprintf("removed %s", name))
	}

	return nil
}
