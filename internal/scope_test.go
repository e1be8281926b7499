package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func testResolver(home, cwd string) *ScopeResolver {
	return &ScopeResolver{
		homeDir: home,
		workDir: func() (string, error) { return cwd, nil },
	}
}

func TestScopePaths(t *testing.T) {
	scope := Scope{Path: "/home/user/project", StateDir: "/home/user/project/.speedchaser"}

	if got, want := scope.VectorPath(), "/home/user/project/.speedchaser/vectorstore"; got != want {
		t.Errorf("VectorPath = %q, want %q", got, want)
	}
	if got, want := scope.ConfigPath(), "/home/user/project/.speedchaser/config.yaml"; got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
	if got, want := scope.EnvPath(), "/home/user/project/.env"; got != want {
		t.Errorf("EnvPath = %q, want %q", got, want)
	}
	if got, want := scope.Resolve("refs"), "/home/user/project/refs"; got != want {
		t.Errorf("Resolve(refs) = %q, want %q", got, want)
	}
	if got := scope.Resolve("/abs/refs"); got != "/abs/refs" {
		t.Errorf("Resolve kept absolute path as %q", got)
	}
}

func TestScopeResolverGlobal(t *testing.T) {
	home := t.TempDir()
	scope := testResolver(home, home).Global()

	if scope.Type != ScopeGlobal {
		t.Errorf("expected ScopeGlobal, got %q", scope.Type)
	}
	if want := filepath.Join(home, ScopeDirName); scope.StateDir != want {
		t.Errorf("expected StateDir %q, got %q", want, scope.StateDir)
	}
	if scope.Initialized() {
		t.Error("expected a fresh home to be uninitialized")
	}
}

func TestScopeResolverProjectNotFound(t *testing.T) {
	tmp := t.TempDir()

	if _, found := testResolver(t.TempDir(), tmp).Project(); found {
		t.Error("expected Project() to return false when no state directory exists")
	}
}

func TestScopeResolverProjectInParent(t *testing.T) {
	tmp := t.TempDir()
	stateDir := filepath.Join(tmp, ScopeDirName)
	if err := os.Mkdir(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	subDir := filepath.Join(tmp, "sub", "dir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	scope, found := testResolver(t.TempDir(), subDir).Project()
	if !found {
		t.Fatal("expected Project() to find the state directory in a parent")
	}
	if scope.Type != ScopeProject {
		t.Errorf("expected ScopeProject, got %q", scope.Type)
	}
	if scope.Path != tmp {
		t.Errorf("expected Path %q, got %q", tmp, scope.Path)
	}
	if !scope.Initialized() {
		t.Error("expected project scope to be initialized")
	}
}

func TestScopeResolverSkipsHomeStateDir(t *testing.T) {
	home := t.TempDir()
	if err := os.Mkdir(filepath.Join(home, ScopeDirName), 0755); err != nil {
		t.Fatal(err)
	}
	work := filepath.Join(home, "code")
	if err := os.Mkdir(work, 0755); err != nil {
		t.Fatal(err)
	}

	r := testResolver(home, work)
	if _, found := r.Project(); found {
		t.Error("the global state directory must not count as a project")
	}
	if scope := r.Resolve(""); scope.Type != ScopeGlobal {
		t.Errorf("expected fallback to ScopeGlobal, got %q", scope.Type)
	}
}

func TestScopeResolverResolve(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	r := testResolver(home, work)

	if scope := r.Resolve("global"); scope.Type != ScopeGlobal {
		t.Errorf("expected ScopeGlobal, got %q", scope.Type)
	}
	if scope := r.Resolve(""); scope.Type != ScopeGlobal {
		t.Errorf("expected fallback to ScopeGlobal, got %q", scope.Type)
	}

	scope := r.Resolve("project")
	if scope.Type != ScopeProject || scope.Path != work {
		t.Errorf("expected an uninitialized project scope at %q, got %+v", work, scope)
	}

	if err := os.Mkdir(filepath.Join(work, ScopeDirName), 0755); err != nil {
		t.Fatal(err)
	}
	if scope := r.Resolve(""); scope.Type != ScopeProject {
		t.Errorf("expected ScopeProject once initialized, got %q", scope.Type)
	}
}
