package devenv

import (
	"fedgrants-backend/lib/configutil"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// StateEnv overrides the state directory, it is set where the binary runs outside
// of a checkout of this module.
const StateEnv = "FEDGRANTS_STATE_DIR"

const statePlaceholder = "<dev_state>"

var moduleLine = regexp.MustCompile(`(?m)^module\s+(\S+)\s*$`)

func isWorkspaceRoot(dir string) bool {
	mod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return false
	}
	matches := moduleLine.FindSubmatch(mod)
	return len(matches) == 2 && string(matches[1]) == "fedgrants-backend"
}

// GetWorkspaceRoot walks up from the working directory to the directory holding
// this module's go.mod.
var GetWorkspaceRoot = sync.OnceValues(func() (string, error) {
	dir, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	for {
		if isWorkspaceRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
})

// StateDir returns the directory local state lives in, dev/.state under the
// workspace root unless StateEnv is set.
func StateDir() (string, error) {
	if dir := os.Getenv(StateEnv); dir != "" {
		return dir, nil
	}
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state"), nil
}

// GetStateConfig reads a config file from the state directory.
func GetStateConfig[T any](path string) (T, error) {
	dir, err := StateDir()
	if err != nil {
		var out T
		return out, err
	}
	return configutil.ReadConfig[T](filepath.Join(dir, path))
}

// ResolvePath expands a leading "<dev_state>" segment into the state directory,
// creating it when missing. Any other path is returned as is.
func ResolvePath(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, statePlaceholder)
	if !ok {
		return path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, strings.TrimLeft(rest, `/\`)), nil
}
