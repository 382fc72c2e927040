// Package fileindex maps filenames to the package records that own them,
// the way a transaction planner resolves file-based dependencies and
// detects file conflicts between packages slated for the same
// transaction (spec ยง4.6).
package fileindex

import (
	"path"
	"strings"

	"github.com/quay/rpmplan/pkg"
)

// fileMode is the file-type mask of st_mode and regularFile its regular-file
// value, used to filter conflict checks down to file content rather than
// directories and devices.
const fileMode = 0o170000
const regularFile = 0o100000

// Owner pairs a package record with the index of the specific file entry
// that supplied a path, letting a conflict check report exact metadata for
// the colliding entry rather than just the package name.
type Owner struct {
	Record *pkg.Record
	Index  int
}

// Index is a mapping from directory name to basename to the owners of that
// path, mirroring the original reader's FilenamesList.
type Index struct {
	checkConflicts bool
	path           map[string]map[string][]Owner
}

// New returns an empty Index. Every owner of a path is retained either way;
// checkConflicts selects whether Conflicts reports collisions between them
// (when false, Conflicts always returns nil).
func New(checkConflicts bool) *Index {
	return &Index{
		checkConflicts: checkConflicts,
		path:           make(map[string]map[string][]Owner),
	}
}

// AddPackage indexes every file r owns.
func (idx *Index) AddPackage(r *pkg.Record) {
	dirs, bases := splitNames(r.Filenames())
	for i := range dirs {
		b, ok := idx.path[dirs[i]]
		if !ok {
			b = make(map[string][]Owner)
			idx.path[dirs[i]] = b
		}
		owner := Owner{Record: r, Index: i}
		b[bases[i]] = append(b[bases[i]], owner)
	}
}

// RemovePackage undoes a prior AddPackage(r). Passing a record that was
// never added is a no-op.
func (idx *Index) RemovePackage(r *pkg.Record) {
	dirs, bases := splitNames(r.Filenames())
	for i := range dirs {
		b, ok := idx.path[dirs[i]]
		if !ok {
			continue
		}
		owners := b[bases[i]]
		for j, o := range owners {
			if o.Record == r {
				b[bases[i]] = append(owners[:j], owners[j+1:]...)
				break
			}
		}
		if len(b[bases[i]]) == 0 {
			delete(b, bases[i])
		}
	}
}

// Search returns every record that owns name, the way a file-based
// dependency ("/bin/sh") resolves against the set of packages slated for a
// transaction.
func (idx *Index) Search(name string) []*pkg.Record {
	dir, base := splitName(name)
	owners := idx.path[dir][base]
	if len(owners) == 0 {
		return nil
	}
	out := make([]*pkg.Record, len(owners))
	for i, o := range owners {
		out[i] = o.Record
	}
	return out
}

// Conflict is one path owned by two packages with disagreeing content.
type Conflict struct {
	Path string
	A, B Owner
}

// Conflicts reports every path owned by more than one indexed package
// where regular-file content disagrees (differing digest). Non-regular
// files (directories, devices, symlinks) never conflict here; rpm permits
// packages to share ownership of a directory (spec ยง4.6).
func (idx *Index) Conflicts() []Conflict {
	if !idx.checkConflicts {
		return nil
	}
	var out []Conflict
	for dir, bases := range idx.path {
		for base, owners := range bases {
			if len(owners) < 2 {
				continue
			}
			full := dir + base
			for i := 0; i < len(owners); i++ {
				for j := i + 1; j < len(owners); j++ {
					if conflicts(owners[i], owners[j]) {
						out = append(out, Conflict{Path: full, A: owners[i], B: owners[j]})
					}
				}
			}
		}
	}
	return out
}

func conflicts(a, b Owner) bool {
	da, ok1 := regularDigest(a)
	db, ok2 := regularDigest(b)
	if !ok1 || !ok2 {
		return false
	}
	return da != db
}

func regularDigest(o Owner) (digest string, isRegular bool) {
	modes := o.Record.FileModes()
	if o.Index >= len(modes) || modes[o.Index]&fileMode != regularFile {
		return "", false
	}
	digests := o.Record.FileDigests()
	if o.Index >= len(digests) {
		return "", false
	}
	return digests[o.Index], true
}

func splitNames(names []string) (dirs, bases []string) {
	dirs = make([]string, len(names))
	bases = make([]string, len(names))
	for i, n := range names {
		dirs[i], bases[i] = splitName(n)
	}
	return dirs, bases
}

func splitName(name string) (dir, base string) {
	dir, base = path.Split(name)
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir, base
}
