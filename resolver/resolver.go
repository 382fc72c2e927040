// Package resolver indexes a set of package records by the dependency
// tuples they provide, require, conflict with, and obsolete, and answers
// "which installed or to-be-installed packages satisfy this requirement"
// the way rpm's own dependency resolver does (spec ยง4.7), directly
// porting the original reader's RpmResolver (claircore never resolves a
// dependency graph, only inventories packages for SBOM purposes).
package resolver

import (
	"fmt"

	"github.com/quay/rpmplan/fileindex"
	"github.com/quay/rpmplan/pkg"
	"github.com/quay/rpmplan/rpmver"
)

// entry is one (flags, version, record) tuple contributed to a dependency
// list by a single package.
type entry struct {
	flags   int32
	version string
	record  *pkg.Record
}

// Resolver indexes the provides, requires, conflicts, and obsoletes of a
// fixed set of packages plus their owned files, so SearchProvides can
// answer a dependency lookup without rescanning every record.
type Resolver struct {
	files *fileindex.Index

	provides  map[string][]entry
	obsoletes map[string][]entry
	conflicts map[string][]entry
	requires  map[string][]entry

	rpms []*pkg.Record
}

// New builds a Resolver over records, skipping source packages and the
// synthetic "gpg-pubkey" pseudo-package, the way RpmResolver.__init__
// does.
func New(records []*pkg.Record, checkFileConflicts bool) *Resolver {
	r := &Resolver{
		files:     fileindex.New(checkFileConflicts),
		provides:  make(map[string][]entry),
		obsoletes: make(map[string][]entry),
		conflicts: make(map[string][]entry),
		requires:  make(map[string][]entry),
	}
	for _, rec := range records {
		if rec.IsSource() || rec.Name() == "gpg-pubkey" {
			continue
		}
		r.AddPackage(rec)
	}
	return r
}

// AddPackage indexes rec's provides/obsoletes/conflicts/requires and
// owned files.
func (r *Resolver) AddPackage(rec *pkg.Record) {
	r.rpms = append(r.rpms, rec)
	r.files.AddPackage(rec)
	addDeps(r.provides, rec.Provides(), rec)
	addDeps(r.obsoletes, rec.Obsoletes(), rec)
	addDeps(r.conflicts, rec.Conflicts(), rec)
	addDeps(r.requires, rec.Requires(), rec)
}

// RemovePackage undoes a prior AddPackage(rec).
func (r *Resolver) RemovePackage(rec *pkg.Record) {
	for i, have := range r.rpms {
		if have == rec {
			r.rpms = append(r.rpms[:i], r.rpms[i+1:]...)
			break
		}
	}
	r.files.RemovePackage(rec)
	removeDeps(r.provides, rec.Provides(), rec)
	removeDeps(r.obsoletes, rec.Obsoletes(), rec)
	removeDeps(r.conflicts, rec.Conflicts(), rec)
	removeDeps(r.requires, rec.Requires(), rec)
}

// Packages returns every record currently indexed.
func (r *Resolver) Packages() []*pkg.Record { return r.rpms }

// Requires returns the packages that declared d as a requirement, keyed
// by its exact (name, flags, version) tuple, matching requires_list's
// grouping in genRelations.
func (r *Resolver) Requires(d pkg.Dep) []*pkg.Record {
	return recordsOf(r.requires[d.Name], d.Flags, d.Version)
}

// RequireGroup is every package that declared the exact same (name, flags,
// version) requirement tuple, the unit RpmOrderer.genRelations iterates
// over when building a dependency graph.
type RequireGroup struct {
	Dep     pkg.Dep
	Records []*pkg.Record
}

// AllRequires returns one RequireGroup per distinct requirement tuple
// registered across every indexed package, matching
// requires_list.keys()/requires_list[key] in the original reader's
// RpmOrderer.genRelations.
func (r *Resolver) AllRequires() []RequireGroup {
	type key struct {
		name, version string
		flags         int32
	}
	byKey := make(map[key]*RequireGroup)
	var order []key
	for name, list := range r.requires {
		for _, e := range list {
			k := key{name: name, version: e.version, flags: e.flags}
			grp, ok := byKey[k]
			if !ok {
				grp = &RequireGroup{Dep: pkg.Dep{Name: name, Flags: e.flags, Version: e.version}}
				byKey[k] = grp
				order = append(order, k)
			}
			grp.Records = append(grp.Records, e.record)
		}
	}
	out := make([]RequireGroup, len(order))
	for i, k := range order {
		out[i] = *byKey[k]
	}
	return out
}

// SearchProvides returns every package that satisfies a requirement of
// name/flags/version, consulting the provides index first and, for an
// unversioned file-path requirement, falling back to the owned-file index
// (spec ยง4.7, matching RpmResolver.searchDependency).
func (r *Resolver) SearchProvides(name string, flags int32, version string) []*pkg.Record {
	out := searchDependency(r.provides[name], flags, version)
	if len(name) > 0 && name[0] == '/' && version == "" {
		seen := make(map[*pkg.Record]bool, len(out))
		for _, p := range out {
			seen[p] = true
		}
		for _, p := range r.files.Search(name) {
			if !seen[p] {
				out = append(out, p)
				seen[p] = true
			}
		}
	}
	return out
}

// SearchObsoletes and SearchConflicts answer the same intersection query
// against the obsoletes/conflicts indexes.
func (r *Resolver) SearchObsoletes(name string, flags int32, version string) []*pkg.Record {
	return searchDependency(r.obsoletes[name], flags, version)
}
func (r *Resolver) SearchConflicts(name string, flags int32, version string) []*pkg.Record {
	return searchDependency(r.conflicts[name], flags, version)
}

func searchDependency(list []entry, flags int32, version string) []*pkg.Record {
	if len(list) == 0 {
		return nil
	}
	want := rpmver.Split(version)
	var out []*pkg.Record
	seen := make(map[*pkg.Record]bool)
	for _, e := range list {
		if seen[e.record] {
			continue
		}
		if version == "" || rpmver.Intersect(int(flags), want, int(e.flags), rpmver.Split(e.version)) {
			out = append(out, e.record)
			seen[e.record] = true
		}
	}
	return out
}

func recordsOf(list []entry, flags int32, version string) []*pkg.Record {
	var out []*pkg.Record
	for _, e := range list {
		if e.flags == flags && e.version == version {
			out = append(out, e.record)
		}
	}
	return out
}

func addDeps(index map[string][]entry, deps []pkg.Dep, rec *pkg.Record) {
	for _, d := range deps {
		index[d.Name] = append(index[d.Name], entry{flags: d.Flags, version: d.Version, record: rec})
	}
}

func removeDeps(index map[string][]entry, deps []pkg.Dep, rec *pkg.Record) {
	for _, d := range deps {
		list := index[d.Name]
		for i, e := range list {
			if e.record == rec && e.flags == d.Flags && e.version == d.Version {
				index[d.Name] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(index[d.Name]) == 0 {
			delete(index, d.Name)
		}
	}
}

// Sense flag bits used by DepString, matching rpm's RPMSENSE_LESS/
// GREATER/EQUAL.
const (
	senseLess    = rpmver.Less
	senseGreater = rpmver.Greater
	senseEqual   = rpmver.Equal
)

// DepString renders a dependency tuple the way rpm's own tools do, e.g.
// "(foo >= 1.0)", or just "foo" when version is empty, matching
// oldpyrpm.py's depString.
func DepString(name string, flags int32, version string) string {
	if version == "" {
		return name
	}
	var op string
	if flags&senseLess != 0 {
		op += "<"
	}
	if flags&senseGreater != 0 {
		op += ">"
	}
	if flags&senseEqual != 0 {
		op += "="
	}
	return fmt.Sprintf("(%s %s %s)", name, op, version)
}
