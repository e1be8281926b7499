package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/4thel00z/speedchaser/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func NewIngestCmd(svc servicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Build the vector index from local files",
		Long: `Walk a directory, extract text from whitelisted files, chunk and embed it,
and replace the vector index. Every run is a full rebuild.`,
		Args: cobra.MaximumNArgs(1),
		RunE: makeIngestRunner(svc),
	}

	cmd.Flags().String("context", "", "Ingest the folder of a named context")
	cmd.Flags().Bool("watch", false, "Rebuild whenever files under the path change")
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	return cmd
}

func makeIngestRunner(svc servicesFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := svc(cmd)
		if err != nil {
			return err
		}

		contextName, _ := cmd.Flags().GetString("context")
		watch, _ := cmd.Flags().GetBool("watch")
		debounce, _ := cmd.Flags().GetDuration("debounce")

		var arg string
		if len(args) > 0 {
			arg = args[0]
		}
		path, err := s.IngestPath(arg, contextName)
		if err != nil {
			return err
		}

		if err := runIngest(cmd, s, path); err != nil {
			return err
		}
		if !watch {
			return nil
		}
		return watchAndIngest(cmd, s, path, debounce)
	}
}

func runIngest(cmd *cobra.Command, s *internal.Services, path string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	fmt.Fprintf(cmd.ErrOrStderr(), "Running ingestion on path: %s\n", path)

	out, err := s.Ingest.Execute(cmd.Context(), internal.IngestInput{Path: path})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if asJSON {
		return writeJSON(cmd, out)
	}

	if out.NoOp {
		fmt.Fprintf(cmd.OutOrStdout(), "No usable text found under %s; the existing index was left unchanged.\n", path)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %d documents (%s, dim %d, %s) in %s\n",
		out.Chunks, out.Documents, out.Model, out.Dimension, out.Backend, out.Duration.Round(time.Millisecond))
	if n := len(out.Skipped); n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d files\n", n)
	}
	return nil
}

func watchAndIngest(cmd *cobra.Command, s *internal.Services, root string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root, s.Config.Ingest.IgnoreFolders); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}

	var file string
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		file = root
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes...\n", root)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(event, s.Scope.StateDir, file) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchDirs(watcher, event.Name, s.Config.Ingest.IgnoreFolders)
				}
			}
			if !pending {
				timer.Reset(debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-timer.C:
			pending = false
			if err := runIngest(cmd, s, root); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			}
		}
	}
}

// addWatchDirs registers root and every directory below it that is not
// ignored. A file root is watched through its parent directory.
func addWatchDirs(watcher *fsnotify.Watcher, root string, ignored []string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			if path != root && slices.Contains(ignored, info.Name()) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// shouldIgnoreEvent drops events inside the state directory and metadata-only
// changes. When file is set, only events for that file count.
func shouldIgnoreEvent(event fsnotify.Event, stateDir, file string) bool {
	name := absPath(event.Name)

	if file != "" && name != absPath(file) {
		return true
	}

	if stateDir != "" && isWithin(name, absPath(stateDir)) {
		return true
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	return false
}

func isWithin(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
