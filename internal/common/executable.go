package common

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"analysis-broker/internal/constants"
)

// PlatformExpand adds the launcher suffixes a server build may ship with
func PlatformExpand(names []string) []string {
	out := make([]string, 0, len(names)*4)
	for _, n := range names {
		if runtime.GOOS == "windows" {
			ext := filepath.Ext(n)
			if ext == ".cmd" || ext == ".bat" || ext == ".exe" {
				out = append(out, n)
			} else {
				out = append(out, n, n+".cmd", n+".bat", n+".exe")
			}
		} else {
			if filepath.Ext(n) == "" {
				out = append(out, n, n+".sh")
			} else {
				out = append(out, n)
			}
		}
	}
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(out))
	for _, v := range out {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}
	return uniq
}

func isExecutableFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// FirstExistingExecutable returns the first candidate found on PATH or under dir
func FirstExistingExecutable(dir string, names []string) string {
	cands := PlatformExpand(names)
	for _, n := range cands {
		if p, err := exec.LookPath(n); err == nil {
			return p
		}
	}
	if dir == "" {
		return ""
	}
	for _, n := range cands {
		if p := filepath.Join(dir, n); isExecutableFile(p) {
			return p
		}
	}
	for _, n := range cands {
		if p := filepath.Join(dir, "bin", n); isExecutableFile(p) {
			return p
		}
	}
	return ""
}

// ResolveServerExecutable turns a configured server path into something exec can run.
// A directory is searched for the default launcher names; an empty path probes PATH.
func ResolveServerExecutable(path string) (string, error) {
	if path == "" {
		if p := FirstExistingExecutable("", constants.DefaultServerExecutableNames()); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("no analysis server executable found on PATH (tried %v)", constants.DefaultServerExecutableNames())
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if p := FirstExistingExecutable(path, constants.DefaultServerExecutableNames()); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("no analysis server executable in directory %s", path)
	}

	if isExecutableFile(path) {
		return path, nil
	}

	p, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("analysis server executable %q not found: %w", path, err)
	}
	return p, nil
}
