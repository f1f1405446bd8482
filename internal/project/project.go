// Package project locates the directory whose critq.ini applies to a command.
//
// A project directory is identified by the presence of critq.ini. Looking
// upward lets critq run from any subdirectory of a project and still pick up
// its settings and .env file.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/shipq/critq/internal/config"
)

// Root contains information about a located project.
type Root struct {
	// Dir is the absolute path to the project directory.
	Dir string

	// ConfigPath is the absolute path to the critq.ini file.
	ConfigPath string
}

// FindRoot searches upward from startDir looking for a critq.ini file.
//
// Returns the Root if found, or (nil, false, nil) if not found.
// Returns an error only for filesystem errors (not for "not found").
func FindRoot(fs afero.Fs, startDir string) (*Root, bool, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	dir := absDir
	for {
		configPath := filepath.Join(dir, config.ConfigFilename)
		info, err := fs.Stat(configPath)
		if err == nil && !info.IsDir() {
			return &Root{Dir: dir, ConfigPath: configPath}, true, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("failed to check %s: %w", configPath, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false, nil
		}
		dir = parent
	}
}

// Dir returns the directory critq should read critq.ini and .env from: the
// nearest ancestor of startDir holding critq.ini, or startDir itself.
func Dir(fs afero.Fs, startDir string) (string, error) {
	root, found, err := FindRoot(fs, startDir)
	if err != nil {
		return "", err
	}
	if found {
		return root.Dir, nil
	}
	return filepath.Abs(startDir)
}
