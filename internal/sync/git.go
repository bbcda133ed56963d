package sync

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitCatalog stages the given files and commits them to the repository
// containing the first one. The catalog is version-controlled state, so runs
// can opt into committing the result of every download/sync. A clean
// worktree is a no-op, and a missing repository is not an error.
func CommitCatalog(files []string, message string) error {
	if len(files) == 0 {
		return nil
	}

	repo, err := git.PlainOpenWithOptions(filepath.Dir(files[0]), &git.PlainOpenOptions{DetectDotGit: true})
	if err == git.ErrRepositoryNotExists {
		slog.Debug("catalog is not inside a git repository, skipping commit")
		return nil
	} else if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	staged := false
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue // outside the worktree
		}
		if _, err := wt.Add(rel); err != nil {
			return fmt.Errorf("staging %s: %w", rel, err)
		}
		staged = true
	}
	if !staged {
		return nil
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("getting worktree status: %w", err)
	}
	if status.IsClean() {
		slog.Debug("catalog unchanged, nothing to commit")
		return nil
	}

	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "rbxsync",
			Email: "rbxsync@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}

	slog.Info("committed catalog changes", "message", message)
	return nil
}
