// Package builtin implements the workspace tool catalogue: sandboxed
// file operations, shell execution, and web fetch.
package builtin

import (
	"fmt"
	"path/filepath"
	"strings"
)

// pathSandboxMsg is the error prefix every sandbox rejection carries.
const pathSandboxMsg = "path escapes workspace"

// resolveWorkspacePath resolves a tool path argument against the
// workspace root. Relative paths are joined to the root; absolute paths
// must already be inside it. Any argument containing ".." or resolving
// outside the workspace is rejected before I/O.
func resolveWorkspacePath(workspace, arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("missing 'path'")
	}
	if strings.Contains(arg, "..") {
		return "", fmt.Errorf("%s: %q", pathSandboxMsg, arg)
	}

	base, err := filepath.Abs(workspace)
	if err != nil {
		return "", err
	}

	resolved := arg
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}
	resolved = filepath.Clean(resolved)

	if !pathWithinBase(base, resolved) {
		return "", fmt.Errorf("%s: %q", pathSandboxMsg, arg)
	}
	return resolved, nil
}

func pathWithinBase(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// IsSandboxViolation reports whether err is a path-sandbox rejection.
func IsSandboxViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), pathSandboxMsg)
}
