// Package workdir finds the pratica workspace root for a working directory,
// supporting redirection via .pratica-root files.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// RootFile holds the path of the workspace to use instead.
	RootFile = ".pratica-root"
	dataDir  = ".pratica"
)

// ResolveBaseDir walks up from baseDir to the nearest directory holding a
// .pratica-root file or a .pratica directory. A .pratica-root file wins and
// its content is returned; otherwise the directory holding .pratica is. When
// neither exists anywhere above, baseDir is returned unchanged so that init
// creates the workspace where the user is.
func ResolveBaseDir(baseDir string) string {
	dir, err := filepath.Abs(baseDir)
	if err != nil {
		return baseDir
	}
	for {
		if target, ok := readRootFile(dir); ok {
			return target
		}
		if info, err := os.Stat(filepath.Join(dir, dataDir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return baseDir
		}
		dir = parent
	}
}

func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, RootFile))
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(string(content))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return target, true
}
