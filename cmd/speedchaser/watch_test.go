package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestShouldIgnoreEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    fsnotify.Event
		stateDir string
		file     string
		want     bool
	}{
		{
			name:     "write outside state dir",
			event:    fsnotify.Event{Name: "/project/data.txt", Op: fsnotify.Write},
			stateDir: "/project/.speedchaser",
			want:     false,
		},
		{
			name:     "write inside state dir",
			event:    fsnotify.Event{Name: "/project/.speedchaser/vectorstore/index.bin", Op: fsnotify.Write},
			stateDir: "/project/.speedchaser",
			want:     true,
		},
		{
			name:     "state dir itself",
			event:    fsnotify.Event{Name: "/project/.speedchaser", Op: fsnotify.Create},
			stateDir: "/project/.speedchaser",
			want:     true,
		},
		{
			name:     "sibling sharing the state dir prefix",
			event:    fsnotify.Event{Name: "/project/.speedchaser-notes/todo.md", Op: fsnotify.Write},
			stateDir: "/project/.speedchaser",
			want:     false,
		},
		{
			name:     "chmod event ignored",
			event:    fsnotify.Event{Name: "/project/data.txt", Op: fsnotify.Chmod},
			stateDir: "/project/.speedchaser",
			want:     true,
		},
		{
			name:     "create outside state dir",
			event:    fsnotify.Event{Name: "/project/new.txt", Op: fsnotify.Create},
			stateDir: "/project/.speedchaser",
			want:     false,
		},
		{
			name:     "remove outside state dir",
			event:    fsnotify.Event{Name: "/project/old.txt", Op: fsnotify.Remove},
			stateDir: "/project/.speedchaser",
			want:     false,
		},
		{
			name:     "watched file written",
			event:    fsnotify.Event{Name: "/project/notes.md", Op: fsnotify.Write},
			stateDir: "/project/.speedchaser",
			file:     "/project/notes.md",
			want:     false,
		},
		{
			name:     "neighbour of watched file",
			event:    fsnotify.Event{Name: "/project/other.md", Op: fsnotify.Write},
			stateDir: "/project/.speedchaser",
			file:     "/project/notes.md",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldIgnoreEvent(tt.event, tt.stateDir, tt.file)
			if got != tt.want {
				t.Errorf("shouldIgnoreEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestWatcher(t *testing.T) *fsnotify.Watcher {
	t.Helper()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { _ = watcher.Close() })
	return watcher
}

func TestAddWatchDirsSkipsIgnoredFolders(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"src/pkg", "node_modules/dep", "docs"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	watcher := newTestWatcher(t)
	if err := addWatchDirs(watcher, root, []string{"node_modules"}); err != nil {
		t.Fatalf("add watch dirs: %v", err)
	}

	got := watcher.WatchList()
	slices.Sort(got)
	want := []string{
		root,
		filepath.Join(root, "docs"),
		filepath.Join(root, "src"),
		filepath.Join(root, "src", "pkg"),
	}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("watch list = %v, want %v", got, want)
	}
}

func TestAddWatchDirsSingleFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "notes.md")
	if err := os.WriteFile(file, []byte("notes"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	watcher := newTestWatcher(t)
	if err := addWatchDirs(watcher, file, nil); err != nil {
		t.Fatalf("add watch dirs: %v", err)
	}

	got := watcher.WatchList()
	if len(got) != 1 || got[0] != root {
		t.Errorf("watch list = %v, want [%s]", got, root)
	}
}

func TestAddWatchDirsMissingRoot(t *testing.T) {
	watcher := newTestWatcher(t)
	if err := addWatchDirs(watcher, filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected an error for a missing root")
	}
}
