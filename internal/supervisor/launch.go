package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
)

// resolveCommand runs the ordered candidate search: explicit path,
// repo-local node_modules/.bin, a global PATH lookup, and
// finally a package-runner fallback with an offline-preferred environment.
func resolveCommand(spec LaunchSpec, projectRoot string) (name string, args []string, env []string, err error) {
	if spec.ExplicitPath != "" {
		// ExplicitPath may carry trailing flags (e.g. a config value of
		// "gemini --experimental-acp"); split it shell-style rather than
		// requiring operators to separate the binary and its args.
		tokens, lexErr := shlex.Split(spec.ExplicitPath)
		if lexErr == nil && len(tokens) > 0 && isExecutable(tokens[0]) {
			return tokens[0], tokens[1:], nil, nil
		}
	}

	if spec.BinName != "" {
		local := filepath.Join(projectRoot, "node_modules", ".bin", spec.BinName)
		if isExecutable(local) {
			return local, nil, nil, nil
		}
		if p, lookErr := exec.LookPath(spec.BinName); lookErr == nil {
			return p, nil, nil, nil
		}
	}

	if spec.PackageRunner == "" {
		return "", nil, nil, fmt.Errorf("no candidate executable found for %q and no package runner configured", spec.BinName)
	}
	runnerPath, lookErr := exec.LookPath(spec.PackageRunner)
	if lookErr != nil {
		return "", nil, nil, fmt.Errorf("package runner %q not found: %w", spec.PackageRunner, lookErr)
	}
	if spec.PackageSpec == "" {
		return "", nil, nil, fmt.Errorf("package runner fallback requires a package spec")
	}
	return runnerPath, []string{"-y", spec.PackageSpec}, []string{
		joinEnv("FORCE_COLOR", "1"),
		joinEnv("NPM_CONFIG_PREFER_OFFLINE", "true"),
	}, nil
}

func joinEnv(k, v string) string { return k + "=" + v }

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// probeVersion runs the resolved command with --version and returns its
// first line of output, used only for a one-line startup log.
func probeVersion(ctx context.Context, name string, baseArgs []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	args := append(append([]string{}, baseArgs...), "--version")
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text()), nil
	}
	return "", fmt.Errorf("empty version output")
}
