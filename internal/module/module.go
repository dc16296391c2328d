// Package module resolves and caches `import "path" as alias` sources
// (SPEC_FULL.md's import supplement — spec.md's own source leaves
// import partially wired and says to either omit or design it cleanly).
// Grounded on DYMS's registration-style built-in-module lookup
// (runtime/vm.go's OP_IMPORT case, builtinModules()), generalized from
// a fixed map of builtins to filesystem resolution through afero so
// imports can come from disk or, in tests, an in-memory filesystem.
package module

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Resolver loads and caches module source text by path, relative to a
// root filesystem (the real OS filesystem in production, an in-memory
// one in tests).
type Resolver struct {
	fs    afero.Fs
	root  string
	cache map[string]string
}

func NewResolver(fs afero.Fs, root string) *Resolver {
	return &Resolver{fs: fs, root: root, cache: make(map[string]string)}
}

// NewOSResolver is the production entry point: modules resolve relative
// to root on the real filesystem.
func NewOSResolver(root string) *Resolver {
	return NewResolver(afero.NewOsFs(), root)
}

// Load returns the source text at path (cached after first read), or
// an error if the file can't be found or read.
func (r *Resolver) Load(path string) (string, error) {
	if src, ok := r.cache[path]; ok {
		return src, nil
	}
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(r.root, path)
	}
	if filepath.Ext(full) == "" {
		full += ".rvn"
	}
	data, err := afero.ReadFile(r.fs, full)
	if err != nil {
		return "", errors.Wrapf(err, "loading module %q", path)
	}
	src := string(data)
	r.cache[path] = src
	return src, nil
}
