package services

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// findExecutable searches PATH and the usual install locations for the first
// of names that exists. Service managers and packaged apps often run with a
// minimal PATH. It returns names[0] when nothing is found.
func findExecutable(names ...string) string {
	if len(names) == 0 {
		return ""
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	searchPaths := []string{
		"/usr/local/bin",
		"/usr/bin",
		"/opt/homebrew/bin",
		"/snap/bin",
		"/opt/libreoffice/program",
		"/usr/lib/libreoffice/program",
		filepath.Join(homeDir, ".local", "bin"),
	}
	if runtime.GOOS == "darwin" {
		searchPaths = append(searchPaths, "/Applications/LibreOffice.app/Contents/MacOS")
	}

	for _, dir := range searchPaths {
		for _, name := range names {
			fullPath := filepath.Join(dir, name)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath
			}
		}
	}
	return names[0]
}
