// Package repoindex keeps the on-disk repository index archives in sync
// with the catalog by invoking the external repo-add/repo-remove tools.
package repoindex

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// Tool invokes the index-maintenance executables. Output is discarded; the
// subprocess is awaited and a non-zero exit is an error, so callers can keep
// the index update inside their rollback boundary.
type Tool struct {
	addCommand    string
	removeCommand string
}

func New(addCommand, removeCommand string) Tool {
	return Tool{
		addCommand:    addCommand,
		removeCommand: removeCommand,
	}
}

// Add inserts or refreshes the package's entry in the index archive at
// indexPath.
func (t Tool) Add(ctx context.Context, indexPath, packagePath string) error {
	log.Debug().
		Str("index", indexPath).
		Str("package", packagePath).
		Msg("adding package to repository index")

	cmd := exec.CommandContext(ctx, t.addCommand, "--remove", "--quiet", indexPath, packagePath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", t.addCommand, indexPath, err)
	}

	return nil
}

// Remove drops the named package's entry from the index archive at
// indexPath.
func (t Tool) Remove(ctx context.Context, indexPath, packageName string) error {
	log.Debug().
		Str("index", indexPath).
		Str("package", packageName).
		Msg("removing package from repository index")

	cmd := exec.CommandContext(ctx, t.removeCommand, indexPath, packageName)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", t.removeCommand, indexPath, err)
	}

	return nil
}
