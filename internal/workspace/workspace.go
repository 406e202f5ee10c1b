// Package workspace manages the scoped scratch directory a Job uses for
// spill files and subprocess I/O, guaranteed to be deleted on every exit
// path (spec §5 "Shared-resource policy").
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"blainsmith.com/go/seahash"
)

// Workspace is a scoped temporary directory for one Job.
type Workspace struct {
	Dir string
}

// Key derives a deterministic, collision-resistant directory name from the
// job's sorted input blob keys, using seahash (grounded on grailbio/bio's
// use of seahash for fast content hashing) so re-running the same job keeps
// a stable scratch path without depending on a UUID generator on this hot
// path.
func Key(inputBlobKeys []string) string {
	sorted := append([]string(nil), inputBlobKeys...)
	sort.Strings(sorted)

	h := seahash.New()
	for _, k := range sorted {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("job-%016x", h.Sum64())
}

// New creates the scratch directory under root, named by Key(inputBlobKeys).
func New(root string, inputBlobKeys []string) (*Workspace, error) {
	dir := filepath.Join(root, Key(inputBlobKeys))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins name under the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the workspace directory and everything under it. Callers
// must defer this immediately after New so cleanup runs on every exit path,
// including panics recovered higher up the stack.
func (w *Workspace) Close() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}
