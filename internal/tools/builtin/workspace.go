package builtin

import "sync"

// Workspace is the mutable sandbox root shared by the file and terminal
// tools. Repointing it redirects every tool that holds it, so a request
// carrying a new workspace takes effect without re-registration.
type Workspace struct {
	mu   sync.RWMutex
	root string
}

// NewWorkspace creates a workspace rooted at root.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// Root returns the current sandbox root.
func (w *Workspace) Root() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// Set repoints the sandbox root.
func (w *Workspace) Set(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.root = root
}
