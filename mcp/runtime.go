package mcp

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// extraPathDirs lists where node, npx, uvx and similar launchers usually
// live when the process was started without a login shell.
func extraPathDirs(goos, home string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/bin", "/usr/bin", "/usr/local/bin", "/usr/local/sbin",
			"/opt/homebrew/bin", "/opt/homebrew/sbin", "/usr/local/opt/node/bin",
			filepath.Join(home, ".nvm", "current", "bin"),
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, ".yarn", "bin"),
			filepath.Join(home, ".cargo", "bin"),
			filepath.Join(home, ".local", "bin"),
			"/opt/local/bin",
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("APPDATA"), "npm"),
			filepath.Join(home, "AppData", "Local", "Yarn", "bin"),
			filepath.Join(home, ".cargo", "bin"),
		}
	default:
		return []string{
			"/bin", "/usr/bin", "/usr/local/bin",
			filepath.Join(home, ".nvm", "current", "bin"),
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, ".yarn", "bin"),
			filepath.Join(home, ".cargo", "bin"),
			filepath.Join(home, ".local", "bin"),
			"/snap/bin",
		}
	}
}

// EnhancedPath appends the usual launcher directories to original,
// keeping the original order and dropping duplicates.
func EnhancedPath(original string) string {
	home, _ := os.UserHomeDir()
	return enhancePath(original, runtime.GOOS, home)
}

func enhancePath(original, goos, home string) string {
	sep := string(os.PathListSeparator)
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		dirs = append(dirs, d)
	}
	for _, d := range strings.Split(original, sep) {
		add(d)
	}
	for _, d := range extraPathDirs(goos, home) {
		add(d)
	}
	return strings.Join(dirs, sep)
}

// stdioEnv builds the child environment: the current environment, the
// server's variables and an enhanced PATH.
func stdioEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	path := os.Getenv("PATH")
	if p, ok := extra["PATH"]; ok {
		path = p
	}
	return append(env, "PATH="+EnhancedPath(path))
}

// resolveCommand finds command on the enhanced PATH so a missing launcher
// is reported before the server is spawned.
func resolveCommand(command string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("stdio server has no command")
	}
	if filepath.IsAbs(command) || strings.ContainsRune(command, filepath.Separator) {
		if _, err := os.Stat(command); err != nil {
			return "", fmt.Errorf("command %s not found: %w", command, err)
		}
		return command, nil
	}
	for _, dir := range filepath.SplitList(EnhancedPath(os.Getenv("PATH"))) {
		candidate := filepath.Join(dir, command)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if p, err := exec.LookPath(command); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("command %s not found on PATH", command)
}
