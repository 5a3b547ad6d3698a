package modelsync

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmkeeper/llmkeeper/pkg/hostinfo"
	"github.com/llmkeeper/llmkeeper/pkg/presenter"
)

type fakeManager struct {
	installed []string
	listErr   error
	pullErrs  map[string][]error // consumed per attempt
	removeErr map[string]error

	pulled  []string
	removed []string
}

func (f *fakeManager) Ping(context.Context) error { return nil }

func (f *fakeManager) List(context.Context) ([]string, error) {
	return f.installed, f.listErr
}

func (f *fakeManager) Pull(_ context.Context, model string) error {
	if errs := f.pullErrs[model]; len(errs) > 0 {
		err := errs[0]
		f.pullErrs[model] = errs[1:]
		if err != nil {
			return err
		}
	}
	f.pulled = append(f.pulled, model)
	f.installed = append(f.installed, model)
	return nil
}

func (f *fakeManager) Remove(_ context.Context, model string) error {
	if err := f.removeErr[model]; err != nil {
		return err
	}
	f.removed = append(f.removed, model)
	return nil
}

type fakeHost struct {
	capacities []hostinfo.Capacity // consumed per call; last one repeats
	err        error
}

func (f *fakeHost) Capacity(context.Context) (hostinfo.Capacity, error) {
	if f.err != nil {
		return hostinfo.Capacity{}, f.err
	}
	cap := f.capacities[0]
	if len(f.capacities) > 1 {
		f.capacities = f.capacities[1:]
	}
	return cap, nil
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testUI(input string) presenter.Presenter {
	var out bytes.Buffer
	return presenter.NewWithOptions(&out, &out, strings.NewReader(input), presenter.ColorNever)
}

const basicCatalog = `small,llama3.1:8b,8gb,128gb,fits
large,llama3.1:70b,32gb,256gb,too big
`

func TestRunDownloadsEligibleModels(t *testing.T) {
	mgr := &fakeManager{}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: writeCatalog(t, basicCatalog)}, mgr, host, testUI(""))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"llama3.1:8b"}, result.Eligible)
	assert.Equal(t, []string{"llama3.1:70b"}, result.Ineligible)
	assert.Equal(t, []string{"llama3.1:8b"}, result.Downloaded)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, []string{"llama3.1:8b"}, mgr.pulled)
}

func TestRunIsIdempotent(t *testing.T) {
	mgr := &fakeManager{}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	cfg := Config{CatalogPath: writeCatalog(t, basicCatalog)}

	_, err := NewEngine(cfg, mgr, host, testUI("")).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, mgr.pulled, 1)

	result, err := NewEngine(cfg, mgr, host, testUI("")).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Downloaded)
	assert.Equal(t, []string{"llama3.1:8b"}, result.Skipped)
	assert.Len(t, mgr.pulled, 1, "second run must not pull again")
}

func TestRunMissingCatalogIsFatal(t *testing.T) {
	engine := NewEngine(Config{CatalogPath: "/nonexistent/models.csv"}, &fakeManager{},
		&fakeHost{capacities: []hostinfo.Capacity{{}}}, testUI(""))
	_, err := engine.Run(context.Background())
	assert.Error(t, err)
}

func TestRunListFailureIsFatal(t *testing.T) {
	mgr := &fakeManager{listErr: errors.New("connection refused")}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: writeCatalog(t, basicCatalog)}, mgr, host, testUI(""))

	_, err := engine.Run(context.Background())
	assert.Error(t, err)
}

func TestRunDryRunPullsNothing(t *testing.T) {
	mgr := &fakeManager{}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: writeCatalog(t, basicCatalog), DryRun: true}, mgr, host, testUI(""))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Downloaded)
	assert.Empty(t, mgr.pulled)
}

func TestPullRetriesTransientFailures(t *testing.T) {
	mgr := &fakeManager{pullErrs: map[string][]error{
		"llama3.1:8b": {errors.New("timeout"), errors.New("timeout")},
	}}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{
		CatalogPath: writeCatalog(t, basicCatalog),
		Retry:       RetryConfig{Attempts: 5, Delay: time.Millisecond},
	}, mgr, host, testUI(""))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b"}, result.Downloaded)
}

func TestPullGivesUpAfterBoundedAttempts(t *testing.T) {
	mgr := &fakeManager{pullErrs: map[string][]error{
		"llama3.1:8b": {errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
	}}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{
		CatalogPath: writeCatalog(t, basicCatalog),
		Retry:       RetryConfig{Attempts: 2, Delay: time.Millisecond},
	}, mgr, host, testUI(""))

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestSpaceGateWaitsForOperator(t *testing.T) {
	mgr := &fakeManager{}
	// 128gb requirement / divisor 20 = 6GB estimate. First check sees 2GB
	// free, after the operator confirms, 50GB.
	host := &fakeHost{capacities: []hostinfo.Capacity{
		{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}, // initial capacity sample
		{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 2},   // space gate, insufficient
		{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 50},  // after freeing space
	}}
	engine := NewEngine(Config{CatalogPath: writeCatalog(t, basicCatalog)}, mgr, host, testUI("y\n"))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b"}, result.Downloaded)
}

func TestSpaceGateAbortsWhenOperatorDeclines(t *testing.T) {
	mgr := &fakeManager{}
	host := &fakeHost{capacities: []hostinfo.Capacity{
		{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200},
		{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 2},
	}}
	engine := NewEngine(Config{CatalogPath: writeCatalog(t, basicCatalog)}, mgr, host, testUI("n\n"))

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientSpace)
	assert.Empty(t, mgr.pulled)
}

func TestSpaceGateNonInteractiveFailsFast(t *testing.T) {
	mgr := &fakeManager{}
	host := &fakeHost{capacities: []hostinfo.Capacity{
		{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200},
		{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 2},
	}}
	engine := NewEngine(Config{CatalogPath: writeCatalog(t, basicCatalog), AssumeYes: true}, mgr, host, testUI(""))

	_, err := engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientSpace)
}

func TestCleanupRemovesOrphans(t *testing.T) {
	// Installed {A,B,C}, catalog {A,C}: removal candidates are exactly {B}.
	catalogFile := writeCatalog(t, `x,model-a,8gb,128gb,a
x,model-c,8gb,128gb,c
`)
	mgr := &fakeManager{installed: []string{"model-a", "model-b", "model-c"}}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: catalogFile, Cleanup: true}, mgr, host, testUI("y\n"))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"model-b"}, result.Removed)
	assert.Equal(t, []string{"model-b"}, mgr.removed)
	assert.NoError(t, result.RemovalFailures)
}

func TestCleanupDeclinedLeavesOrphans(t *testing.T) {
	catalogFile := writeCatalog(t, "x,model-a,8gb,128gb,a\n")
	mgr := &fakeManager{installed: []string{"model-a", "model-b"}}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: catalogFile, Cleanup: true}, mgr, host, testUI("n\n"))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	assert.Empty(t, mgr.removed)
}

func TestCleanupDryRunRemovesNothing(t *testing.T) {
	catalogFile := writeCatalog(t, "x,model-a,8gb,128gb,a\n")
	mgr := &fakeManager{installed: []string{"model-a", "model-b"}}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: catalogFile, Cleanup: true, DryRun: true}, mgr, host, testUI(""))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	assert.Empty(t, mgr.removed)
}

func TestCleanupReportsPerItemFailures(t *testing.T) {
	catalogFile := writeCatalog(t, "x,model-a,8gb,128gb,a\n")
	mgr := &fakeManager{
		installed: []string{"model-a", "model-b", "model-c"},
		removeErr: map[string]error{"model-b": errors.New("in use")},
	}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: catalogFile, Cleanup: true, AssumeYes: true}, mgr, host, testUI(""))

	result, err := engine.Run(context.Background())
	require.NoError(t, err, "per-item removal failures must not fail the run")
	assert.Equal(t, []string{"model-c"}, result.Removed)
	require.Error(t, result.RemovalFailures)
	assert.Contains(t, result.RemovalFailures.Error(), "model-b")
}

func TestDuplicateCatalogEntriesPulledOnce(t *testing.T) {
	catalogFile := writeCatalog(t, `x,model-a,8gb,128gb,first
y,model-a,8gb,128gb,second
`)
	mgr := &fakeManager{}
	host := &fakeHost{capacities: []hostinfo.Capacity{{RAMGB: 16, DiskTotalGB: 512, DiskAvailableGB: 200}}}
	engine := NewEngine(Config{CatalogPath: catalogFile}, mgr, host, testUI(""))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"model-a"}, result.Downloaded)
	assert.Len(t, mgr.pulled, 1)
}
