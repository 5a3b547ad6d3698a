package skillstore

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/llmkeeper/llmkeeper/pkg/logger"
)

// PackageInstaller is the collaborator that manages the globally-installed
// skills plugin package. Injected so tests never shell out.
type PackageInstaller interface {
	IsInstalled(ctx context.Context, pkg string) (bool, error)
	Install(ctx context.Context, pkg string) error
}

// NpmInstaller implements PackageInstaller over the npm CLI.
type NpmInstaller struct{}

// IsInstalled checks the global npm package list for pkg. npm exits
// non-zero when the package is absent, which is not an error here.
func (NpmInstaller) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	cmd := exec.CommandContext(ctx, "npm", "list", "-g", "--depth=0", pkg)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to run npm list")
	}
	return true, nil
}

// Install installs pkg globally.
func (NpmInstaller) Install(ctx context.Context, pkg string) error {
	logger.G(ctx).WithField("package", pkg).Info("installing plugin package globally")

	cmd := exec.CommandContext(ctx, "npm", "install", "-g", pkg)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "npm install -g %s failed: %s", pkg, string(out))
	}
	return nil
}

// checkDependencies verifies the required external tools are on PATH.
// Missing tools are a fatal precondition.
func checkDependencies(tools []string) error {
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return errors.Errorf("required tool %q not found in PATH", tool)
		}
	}
	return nil
}
