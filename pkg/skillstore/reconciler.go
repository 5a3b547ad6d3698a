// Package skillstore keeps three skill directory trees consistent: the
// version-controlled repository copy, one canonical store under the
// operator's home directory, and N consumer locations that must be pure
// symlinks to the canonical store. The canonical store is authoritative
// after a sync; local-only skills found there are offered back to the
// repository for tracking.
package skillstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/llmkeeper/llmkeeper/pkg/logger"
	"github.com/llmkeeper/llmkeeper/pkg/presenter"
)

// Config carries the reconciler's paths and policy knobs.
type Config struct {
	// RepoDir is the version-controlled skills directory.
	RepoDir string
	// CanonicalDir is the authoritative store all consumers link to.
	CanonicalDir string
	// ConsumerDirs are the tool config locations replaced by symlinks.
	ConsumerDirs []string
	// PluginName is the npm package providing skills support; empty skips
	// the install and config-patch steps.
	PluginName string
	// PluginConfigPath is the JSON config whose "plugin" array must list
	// PluginName.
	PluginConfigPath string
	// RequiredTools must be on PATH before anything runs.
	RequiredTools []string
	AssumeYes     bool
	DryRun        bool
}

// Result summarizes a reconciliation run.
type Result struct {
	PluginInstalled bool // true when this run installed the package
	ConfigPatched   bool
	Mirrored        []string // skills mirrored from repo to canonical
	Absorbed        []string // consumer-local skills copied into canonical
	Relinked        []string // consumer paths replaced with symlinks
	LocalOnly       []string // canonical skills missing from the repo
	CopiedToRepo    []string
}

// Reconciler runs the skill store sync state machine.
type Reconciler struct {
	cfg       Config
	installer PackageInstaller
	ui        presenter.Presenter
}

// NewReconciler creates a reconciler. A nil installer defaults to the npm
// implementation.
func NewReconciler(cfg Config, installer PackageInstaller, ui presenter.Presenter) *Reconciler {
	if installer == nil {
		installer = NpmInstaller{}
	}
	return &Reconciler{
		cfg:       cfg,
		installer: installer,
		ui:        ui,
	}
}

// Run executes the reconciliation steps in order. Every step is idempotent,
// so an interrupted run is safe to repeat.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := checkDependencies(r.cfg.RequiredTools); err != nil {
		return nil, err
	}

	if err := r.ensurePlugin(ctx, result); err != nil {
		return nil, err
	}

	if err := r.mirrorToCanonical(ctx, result); err != nil {
		return nil, err
	}

	if err := r.reconcileConsumers(ctx, result); err != nil {
		return result, err
	}

	if err := r.absorbLocalOnly(ctx, result); err != nil {
		return result, err
	}

	return result, nil
}

// ensurePlugin installs the plugin package when missing and patches the
// plugin config file.
func (r *Reconciler) ensurePlugin(ctx context.Context, result *Result) error {
	if r.cfg.PluginName == "" {
		return nil
	}

	installed, err := r.installer.IsInstalled(ctx, r.cfg.PluginName)
	if err != nil {
		return err
	}
	if !installed {
		if r.cfg.DryRun {
			r.ui.Info(fmt.Sprintf("would install %s globally", r.cfg.PluginName))
		} else {
			if err := r.installer.Install(ctx, r.cfg.PluginName); err != nil {
				return err
			}
			result.PluginInstalled = true
			r.ui.Success(fmt.Sprintf("installed %s", r.cfg.PluginName))
		}
	}

	if r.cfg.PluginConfigPath == "" || r.cfg.DryRun {
		return nil
	}

	patched, err := ensurePluginListed(r.cfg.PluginConfigPath, r.cfg.PluginName)
	if err != nil {
		return err
	}
	result.ConfigPatched = patched
	if patched {
		r.ui.Success(fmt.Sprintf("added %s to %s", r.cfg.PluginName, r.cfg.PluginConfigPath))
	}
	return nil
}

// mirrorToCanonical performs the non-deleting mirror: repository skills
// overwrite their canonical counterparts, canonical extras are preserved.
func (r *Reconciler) mirrorToCanonical(ctx context.Context, result *Result) error {
	if _, err := os.Stat(r.cfg.RepoDir); err != nil {
		return errors.Wrapf(err, "repository skills directory %s missing", r.cfg.RepoDir)
	}

	skills, err := listSubdirs(r.cfg.RepoDir)
	if err != nil {
		return err
	}

	for _, name := range skills {
		if r.cfg.DryRun {
			r.ui.Info(fmt.Sprintf("would mirror %s into %s", name, r.cfg.CanonicalDir))
			continue
		}
		if err := copyDir(filepath.Join(r.cfg.RepoDir, name), filepath.Join(r.cfg.CanonicalDir, name)); err != nil {
			return errors.Wrapf(err, "failed to mirror skill %s", name)
		}
		result.Mirrored = append(result.Mirrored, name)
	}

	logger.G(ctx).WithField("count", len(result.Mirrored)).Debug("mirrored repository skills")
	return nil
}

// reconcileConsumers makes each consumer path a symlink to the canonical
// store, absorbing any skills that only exist in a consumer's real
// directory first so no local content is lost.
func (r *Reconciler) reconcileConsumers(ctx context.Context, result *Result) error {
	var errs error
	for _, consumer := range r.cfg.ConsumerDirs {
		if err := r.reconcileConsumer(ctx, consumer, result); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "consumer %s", consumer))
			r.ui.Error(err, fmt.Sprintf("reconciling %s", consumer))
		}
	}
	return errs
}

func (r *Reconciler) reconcileConsumer(ctx context.Context, consumer string, result *Result) error {
	log := logger.G(ctx).WithField("consumer", consumer)

	info, err := os.Lstat(consumer)
	switch {
	case os.IsNotExist(err):
		// fresh link
	case err != nil:
		return err
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(consumer)
		if err != nil {
			return err
		}
		if target == r.cfg.CanonicalDir {
			log.Debug("symlink already correct")
			return nil
		}
		if r.cfg.DryRun {
			r.ui.Info(fmt.Sprintf("would re-point %s from %s to %s", consumer, target, r.cfg.CanonicalDir))
			return nil
		}
		if err := os.Remove(consumer); err != nil {
			return err
		}
	case info.IsDir():
		if err := r.absorbConsumerDir(consumer, result); err != nil {
			return err
		}
		if r.cfg.DryRun {
			r.ui.Info(fmt.Sprintf("would replace directory %s with a symlink", consumer))
			return nil
		}
		if err := os.RemoveAll(consumer); err != nil {
			return err
		}
	default:
		// a stray regular file in a tool config dir
		if r.cfg.DryRun {
			r.ui.Info(fmt.Sprintf("would replace file %s with a symlink", consumer))
			return nil
		}
		if err := os.Remove(consumer); err != nil {
			return err
		}
	}

	if r.cfg.DryRun {
		if info == nil {
			r.ui.Info(fmt.Sprintf("would link %s -> %s", consumer, r.cfg.CanonicalDir))
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(consumer), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(r.cfg.CanonicalDir, consumer); err != nil {
		return err
	}
	result.Relinked = append(result.Relinked, consumer)
	r.ui.Success(fmt.Sprintf("linked %s -> %s", consumer, r.cfg.CanonicalDir))
	return nil
}

// absorbConsumerDir copies skill subdirectories that exist only in a
// consumer's real directory into the canonical store before the directory
// is replaced by a symlink.
func (r *Reconciler) absorbConsumerDir(consumer string, result *Result) error {
	skills, err := listSubdirs(consumer)
	if err != nil {
		return err
	}
	canonical, err := listSubdirs(r.cfg.CanonicalDir)
	if err != nil {
		return err
	}

	for _, name := range skills {
		if slices.Contains(canonical, name) {
			continue
		}
		if r.cfg.DryRun {
			r.ui.Info(fmt.Sprintf("would preserve local skill %s from %s", name, consumer))
			continue
		}
		if err := copyDir(filepath.Join(consumer, name), filepath.Join(r.cfg.CanonicalDir, name)); err != nil {
			return errors.Wrapf(err, "failed to preserve local skill %s", name)
		}
		result.Absorbed = append(result.Absorbed, name)
		r.ui.Info(fmt.Sprintf("preserved local skill %s from %s", name, consumer))
	}
	return nil
}

// absorbLocalOnly flags canonical skills absent from the repository and,
// with the operator's blessing, copies them back for version control.
// Copies are ensure-present: skills already in the repository are left
// untouched.
func (r *Reconciler) absorbLocalOnly(ctx context.Context, result *Result) error {
	canonical, err := listSubdirs(r.cfg.CanonicalDir)
	if err != nil {
		return err
	}
	repo, err := listSubdirs(r.cfg.RepoDir)
	if err != nil {
		return err
	}

	for _, name := range canonical {
		if !slices.Contains(repo, name) {
			result.LocalOnly = append(result.LocalOnly, name)
		}
	}
	if len(result.LocalOnly) == 0 {
		return nil
	}

	r.ui.Section("Local-only skills")
	for _, name := range result.LocalOnly {
		r.ui.Info(name)
	}

	if r.cfg.DryRun {
		r.ui.Info(fmt.Sprintf("would offer to copy %d skill(s) into the repository", len(result.LocalOnly)))
		return nil
	}

	question := fmt.Sprintf("Copy %d local-only skill(s) into %s for tracking?", len(result.LocalOnly), r.cfg.RepoDir)
	if !r.cfg.AssumeYes && !r.ui.Confirm(question) {
		r.ui.Info("leaving local-only skills untracked")
		return nil
	}

	for _, name := range result.LocalOnly {
		dest := filepath.Join(r.cfg.RepoDir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if err := copyDir(filepath.Join(r.cfg.CanonicalDir, name), dest); err != nil {
			return errors.Wrapf(err, "failed to copy skill %s into repository", name)
		}
		result.CopiedToRepo = append(result.CopiedToRepo, name)
		r.ui.Success(fmt.Sprintf("copied %s into repository", name))
	}

	logger.G(ctx).WithField("copied", len(result.CopiedToRepo)).Debug("absorbed local-only skills")
	return nil
}
