package internal

import (
	"os"
	"path/filepath"
)

const ScopeDirName = ".speedchaser"

type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
)

type Scope struct {
	Type     ScopeType
	Path     string // working directory root
	StateDir string // .speedchaser directory path
}

func (s Scope) VectorPath() string {
	return filepath.Join(s.StateDir, "vectorstore")
}

func (s Scope) ConfigPath() string {
	return filepath.Join(s.StateDir, "config.yaml")
}

func (s Scope) EnvPath() string {
	return filepath.Join(s.Path, ".env")
}

// Resolve makes a relative path absolute against the scope root.
func (s Scope) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Path, p)
}

func (s Scope) Initialized() bool {
	info, err := os.Stat(s.StateDir)
	return err == nil && info.IsDir()
}

type ScopeResolver struct {
	homeDir string
	workDir func() (string, error)
}

func NewScopeResolver() *ScopeResolver {
	home, _ := os.UserHomeDir()
	return &ScopeResolver{homeDir: home, workDir: os.Getwd}
}

func (r *ScopeResolver) Global() Scope {
	return Scope{
		Type:     ScopeGlobal,
		Path:     r.homeDir,
		StateDir: filepath.Join(r.homeDir, ScopeDirName),
	}
}

func (r *ScopeResolver) Project() (Scope, bool) {
	cwd, err := r.workDir()
	if err != nil {
		return Scope{}, false
	}
	return r.findProjectScope(cwd)
}

func (r *ScopeResolver) findProjectScope(dir string) (Scope, bool) {
	for {
		stateDir := filepath.Join(dir, ScopeDirName)
		info, err := os.Stat(stateDir)
		if err == nil && info.IsDir() && stateDir != filepath.Join(r.homeDir, ScopeDirName) {
			return Scope{Type: ScopeProject, Path: dir, StateDir: stateDir}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Scope{}, false
		}
		dir = parent
	}
}

// Here is the project scope rooted at the working directory, whether or not
// it has been initialised yet.
func (r *ScopeResolver) Here() (Scope, error) {
	cwd, err := r.workDir()
	if err != nil {
		return Scope{}, err
	}
	return Scope{Type: ScopeProject, Path: cwd, StateDir: filepath.Join(cwd, ScopeDirName)}, nil
}

func (r *ScopeResolver) Resolve(explicit string) Scope {
	if explicit == string(ScopeGlobal) {
		return r.Global()
	}
	if scope, ok := r.Project(); ok {
		return scope
	}
	if explicit == string(ScopeProject) {
		if scope, err := r.Here(); err == nil {
			return scope
		}
	}
	return r.Global()
}
