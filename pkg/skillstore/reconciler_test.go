package skillstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmkeeper/llmkeeper/pkg/presenter"
)

type fakeInstaller struct {
	installed map[string]bool
	installs  []string
}

func (f *fakeInstaller) IsInstalled(_ context.Context, pkg string) (bool, error) {
	return f.installed[pkg], nil
}

func (f *fakeInstaller) Install(_ context.Context, pkg string) error {
	if f.installed == nil {
		f.installed = make(map[string]bool)
	}
	f.installed[pkg] = true
	f.installs = append(f.installs, pkg)
	return nil
}

func testUI(input string) presenter.Presenter {
	var out bytes.Buffer
	return presenter.NewWithOptions(&out, &out, strings.NewReader(input), presenter.ColorNever)
}

func writeSkill(t *testing.T, root, name, marker string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(marker), 0o644))
}

func newTestConfig(t *testing.T) Config {
	t.Helper()
	base := t.TempDir()
	return Config{
		RepoDir:      filepath.Join(base, "repo"),
		CanonicalDir: filepath.Join(base, "canonical"),
		ConsumerDirs: []string{
			filepath.Join(base, "tool-a", "skills"),
			filepath.Join(base, "tool-b", "skills"),
		},
	}
}

func TestRunMirrorsAndLinks(t *testing.T) {
	cfg := newTestConfig(t)
	writeSkill(t, cfg.RepoDir, "commit-helper", "from repo")

	result, err := NewReconciler(cfg, &fakeInstaller{}, testUI("")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"commit-helper"}, result.Mirrored)
	assert.FileExists(t, filepath.Join(cfg.CanonicalDir, "commit-helper", "notes.txt"))

	for _, consumer := range cfg.ConsumerDirs {
		target, err := os.Readlink(consumer)
		require.NoError(t, err, "consumer %s must be a symlink", consumer)
		assert.Equal(t, cfg.CanonicalDir, target)
	}
	assert.Len(t, result.Relinked, 2)
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	writeSkill(t, cfg.RepoDir, "commit-helper", "from repo")

	_, err := NewReconciler(cfg, &fakeInstaller{}, testUI("")).Run(context.Background())
	require.NoError(t, err)

	result, err := NewReconciler(cfg, &fakeInstaller{}, testUI("")).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Relinked, "correct symlinks must be left alone")
	assert.Empty(t, result.Absorbed)
}

func TestMirrorIsNonDeleting(t *testing.T) {
	cfg := newTestConfig(t)
	writeSkill(t, cfg.RepoDir, "tracked", "repo version")
	writeSkill(t, cfg.CanonicalDir, "tracked", "stale canonical version")
	writeSkill(t, cfg.CanonicalDir, "local-extra", "only canonical")

	_, err := NewReconciler(cfg, &fakeInstaller{}, testUI("n\n")).Run(context.Background())
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(cfg.CanonicalDir, "tracked", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "repo version", string(content), "repo files overwrite canonical")

	assert.DirExists(t, filepath.Join(cfg.CanonicalDir, "local-extra"), "canonical extras are preserved")
}

func TestConsumerDirectoryIsAbsorbedThenLinked(t *testing.T) {
	cfg := newTestConfig(t)
	writeSkill(t, cfg.RepoDir, "tracked", "repo")
	// consumer holds a real directory with a skill canonical does not have
	writeSkill(t, cfg.ConsumerDirs[0], "homegrown", "local only")

	result, err := NewReconciler(cfg, &fakeInstaller{}, testUI("n\n")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"homegrown"}, result.Absorbed)
	assert.FileExists(t, filepath.Join(cfg.CanonicalDir, "homegrown", "notes.txt"))

	target, err := os.Readlink(cfg.ConsumerDirs[0])
	require.NoError(t, err)
	assert.Equal(t, cfg.CanonicalDir, target)
}

func TestWrongSymlinkIsRepointed(t *testing.T) {
	cfg := newTestConfig(t)
	writeSkill(t, cfg.RepoDir, "tracked", "repo")

	elsewhere := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.ConsumerDirs[0]), 0o755))
	require.NoError(t, os.Symlink(elsewhere, cfg.ConsumerDirs[0]))

	_, err := NewReconciler(cfg, &fakeInstaller{}, testUI("")).Run(context.Background())
	require.NoError(t, err)

	target, err := os.Readlink(cfg.ConsumerDirs[0])
	require.NoError(t, err)
	assert.Equal(t, cfg.CanonicalDir, target)
}

func TestLocalOnlyDetectionAndCopyBack(t *testing.T) {
	cfg := newTestConfig(t)
	writeSkill(t, cfg.RepoDir, "skill-a", "a")
	writeSkill(t, cfg.CanonicalDir, "skill-b", "b")

	t.Run("declined leaves repo untouched", func(t *testing.T) {
		result, err := NewReconciler(cfg, &fakeInstaller{}, testUI("n\n")).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"skill-b"}, result.LocalOnly)
		assert.Empty(t, result.CopiedToRepo)
		assert.NoDirExists(t, filepath.Join(cfg.RepoDir, "skill-b"))
	})

	t.Run("confirmed copies into repo", func(t *testing.T) {
		result, err := NewReconciler(cfg, &fakeInstaller{}, testUI("y\n")).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"skill-b"}, result.LocalOnly)
		assert.Equal(t, []string{"skill-b"}, result.CopiedToRepo)
		assert.FileExists(t, filepath.Join(cfg.RepoDir, "skill-b", "notes.txt"))
	})

	t.Run("second confirmed run copies nothing", func(t *testing.T) {
		result, err := NewReconciler(cfg, &fakeInstaller{}, testUI("y\n")).Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, result.LocalOnly)
		assert.Empty(t, result.CopiedToRepo)
	})
}

func TestAssumeYesCopiesWithoutPrompt(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AssumeYes = true
	writeSkill(t, cfg.RepoDir, "skill-a", "a")
	writeSkill(t, cfg.CanonicalDir, "skill-b", "b")

	result, err := NewReconciler(cfg, &fakeInstaller{}, testUI("")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"skill-b"}, result.CopiedToRepo)
}

func TestDryRunTouchesNothing(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.DryRun = true
	cfg.PluginName = "skills-plugin"
	cfg.PluginConfigPath = filepath.Join(t.TempDir(), "config.json")
	writeSkill(t, cfg.RepoDir, "skill-a", "a")
	writeSkill(t, cfg.ConsumerDirs[0], "homegrown", "local")

	installer := &fakeInstaller{}
	result, err := NewReconciler(cfg, installer, testUI("")).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, installer.installs)
	assert.Empty(t, result.Mirrored)
	assert.Empty(t, result.Relinked)
	assert.NoDirExists(t, cfg.CanonicalDir)
	assert.NoFileExists(t, cfg.PluginConfigPath)
	assert.DirExists(t, cfg.ConsumerDirs[0], "consumer directory must survive a dry run")
}

func TestMissingRepoDirIsFatal(t *testing.T) {
	cfg := newTestConfig(t)
	_, err := NewReconciler(cfg, &fakeInstaller{}, testUI("")).Run(context.Background())
	assert.Error(t, err)
}

func TestMissingRequiredToolIsFatal(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.RequiredTools = []string{"definitely-not-a-real-tool-9000"}
	writeSkill(t, cfg.RepoDir, "skill-a", "a")

	_, err := NewReconciler(cfg, &fakeInstaller{}, testUI("")).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-real-tool-9000")
}

func TestPluginInstalledOnlyWhenMissing(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.PluginName = "skills-plugin"
	writeSkill(t, cfg.RepoDir, "skill-a", "a")

	t.Run("missing package is installed", func(t *testing.T) {
		installer := &fakeInstaller{}
		result, err := NewReconciler(cfg, installer, testUI("")).Run(context.Background())
		require.NoError(t, err)
		assert.True(t, result.PluginInstalled)
		assert.Equal(t, []string{"skills-plugin"}, installer.installs)
	})

	t.Run("present package is skipped", func(t *testing.T) {
		installer := &fakeInstaller{installed: map[string]bool{"skills-plugin": true}}
		result, err := NewReconciler(cfg, installer, testUI("")).Run(context.Background())
		require.NoError(t, err)
		assert.False(t, result.PluginInstalled)
		assert.Empty(t, installer.installs)
	})
}
