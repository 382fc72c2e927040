// Package pkg presents a decoded RPM header as a package record: the
// queries a resolver, transaction planner, or inventory consumer actually
// needs, instead of raw tag lookups (spec ยง4.5).
package pkg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/rpmver"
)

// Dep is one provides/requires/obsoletes/conflicts tuple.
type Dep struct {
	Name    string
	Flags   int32
	Version string
}

// Trigger is one flattened trigger entry: a dependency tuple paired with
// the script (and its interpreter) it fires (spec ยง4.5).
type Trigger struct {
	Dep
	Prog   string
	Script string
}

// Record wraps a decoded main header with the package-level queries
// spec.md ยง4.5 names.
type Record struct {
	h        *header.Header
	isSource bool
}

// New wraps h as a package record. isSource marks a source rpm, which
// changes Arch() ("src") and Provides() (no self-provide) per spec ยง4.5;
// Filenames() is the same either way.
func New(h *header.Header, isSource bool) *Record {
	return &Record{h: h, isSource: isSource}
}

func (r *Record) str(tag header.Tag) string {
	v, ok, _ := r.h.Get(tag)
	if !ok {
		return ""
	}
	return v.Str()
}

func (r *Record) strArray(tag header.Tag) []string {
	v, ok, _ := r.h.Get(tag)
	if !ok {
		return nil
	}
	return v.StrArray()
}

func (r *Record) int32Array(tag header.Tag) []int32 {
	v, ok, _ := r.h.Get(tag)
	if !ok {
		return nil
	}
	if v.Kind() == header.TypeInt16 {
		s := v.Int16()
		out := make([]int32, len(s))
		for i, x := range s {
			out[i] = int32(uint16(x))
		}
		return out
	}
	if v.Signed() {
		return v.Int32()
	}
	u := v.Uint32()
	out := make([]int32, len(u))
	for i, x := range u {
		out[i] = int32(x)
	}
	return out
}

// Name, Version, and Release are the package's raw NVR components.
func (r *Record) Name() string    { return r.str(header.TagName) }
func (r *Record) Version() string { return r.str(header.TagVersion) }
func (r *Record) Release() string { return r.str(header.TagRelease) }

// Epoch returns the package's epoch, defaulting to "0" when absent (spec
// ยง4.5).
func (r *Record) Epoch() string {
	v, ok, _ := r.h.Get(header.TagEpoch)
	if !ok {
		return "0"
	}
	e := v.Int32()
	if len(e) == 0 {
		return "0"
	}
	return strconv.Itoa(int(e[0]))
}

// Arch returns "src" for source packages, the header's arch tag otherwise
// (spec ยง4.5).
func (r *Record) Arch() string {
	if r.isSource {
		return "src"
	}
	return r.str(header.TagArch)
}

// IsSource reports whether this record describes a source package.
func (r *Record) IsSource() bool { return r.isSource }

// EVR returns the package's epoch/version/release tuple.
func (r *Record) EVR() rpmver.EVR {
	return rpmver.EVR{Epoch: r.Epoch(), Version: r.Version(), Release: r.Release()}
}

// NVR returns "name-version-release".
func (r *Record) NVR() string {
	return fmt.Sprintf("%s-%s-%s", r.Name(), r.Version(), r.Release())
}

// NVRA returns "name-version-release.arch".
func (r *Record) NVRA() string {
	return fmt.Sprintf("%s.%s", r.NVR(), r.Arch())
}

// NEVR returns "name-epoch:version-release".
func (r *Record) NEVR() string {
	return fmt.Sprintf("%s-%s:%s-%s", r.Name(), r.Epoch(), r.Version(), r.Release())
}

// NEVRA returns "name-epoch:version-release.arch".
func (r *Record) NEVRA() string {
	return fmt.Sprintf("%s.%s", r.NEVR(), r.Arch())
}

// Filenames reassembles the file list from oldfilenames if present,
// otherwise from basenames/dirindexes/dirnames (spec ยง4.5).
func (r *Record) Filenames() []string {
	if old := r.strArray(header.TagOldFilenames); old != nil {
		return old
	}
	basenames := r.strArray(header.TagBasenames)
	if basenames == nil {
		return nil
	}
	dirnames := r.strArray(header.TagDirnames)
	dirindexes := r.int32Array(header.TagDirindexes)
	out := make([]string, len(basenames))
	for i, base := range basenames {
		di := 0
		if i < len(dirindexes) {
			di = int(dirindexes[i])
		}
		dir := ""
		if di < len(dirnames) {
			dir = dirnames[di]
		}
		out[i] = dir + base
	}
	return out
}

func (r *Record) deps(name, flags, version header.Tag) []Dep {
	names := r.strArray(name)
	if names == nil {
		return nil
	}
	fl := r.int32Array(flags)
	ver := r.strArray(version)
	out := make([]Dep, len(names))
	for i, n := range names {
		d := Dep{Name: n}
		if i < len(fl) {
			d.Flags = fl[i]
		}
		if i < len(ver) {
			d.Version = ver[i]
		}
		out[i] = d
	}
	return out
}

// Provides returns the package's provides list, with a self-provide of
// name = EVR appended for binary packages (spec ยง4.5, matching the
// original reader's getProvides).
func (r *Record) Provides() []Dep {
	provs := r.deps(header.TagProvideName, header.TagProvideFlags, header.TagProvideVersion)
	if !r.isSource {
		provs = append(provs, Dep{Name: r.Name(), Flags: rpmver.Equal, Version: r.EVR().String()})
	}
	return provs
}

// Requires, Obsoletes, and Conflicts return the package's remaining
// dependency lists.
func (r *Record) Requires() []Dep {
	return r.deps(header.TagRequireName, header.TagRequireFlags, header.TagRequireVersion)
}
func (r *Record) Obsoletes() []Dep {
	return r.deps(header.TagObsoleteName, header.TagObsoleteFlags, header.TagObsoleteVersion)
}
func (r *Record) Conflicts() []Dep {
	return r.deps(header.TagConflictName, header.TagConflictFlags, header.TagConflictVersion)
}

// Triggers flattens (triggername, triggerflags, triggerversion) against
// triggerscripts/triggerscriptprog, indirecting through triggerindex when
// present (spec ยง4.5).
func (r *Record) Triggers() []Trigger {
	deps := r.deps(header.TagTriggerName, header.TagTriggerFlags, header.TagTriggerVersion)
	if len(deps) == 0 {
		return nil
	}
	scripts := r.strArray(header.TagTriggerScripts)
	progs := r.strArray(header.TagTriggerScriptProg)
	index := r.int32Array(header.TagTriggerIndex)
	if index != nil {
		is, ps := make([]string, len(index)), make([]string, len(index))
		for i, idx := range index {
			if int(idx) < len(scripts) {
				is[i] = scripts[idx]
			}
			if int(idx) < len(progs) {
				ps[i] = progs[idx]
			}
		}
		scripts, progs = is, ps
	}
	out := make([]Trigger, len(deps))
	for i, d := range deps {
		t := Trigger{Dep: d}
		if i < len(scripts) {
			t.Script = scripts[i]
		}
		if i < len(progs) {
			t.Prog = progs[i]
		}
		out[i] = t
	}
	return out
}

// Changelog renders up to count entries (all, if count <= 0) newer than
// sinceTime as one string, matching the original reader's getChangeLog
// format.
func (r *Record) Changelog(count int, sinceTime int64) string {
	text := r.strArray(header.TagChangelogText)
	if len(text) == 0 {
		return ""
	}
	names := r.strArray(header.TagChangelogName)
	times := r.int32Array(header.TagChangelogTime)
	n := len(text)
	if count > 0 && count < n {
		n = count
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if sinceTime != 0 && i < len(times) && int64(times[i]) <= sinceTime {
			break
		}
		name := ""
		if i < len(names) {
			name = names[i]
		}
		fmt.Fprintf(&b, "* %s\n%s\n\n", name, text[i])
	}
	return b.String()
}

// BuildResult reports whether a package may be built for arch, and whether
// doing so produces a noarch result (spec ยง4.5).
type BuildResult int

const (
	BuildExcluded BuildResult = iota
	BuildNormal
	BuildNoarch
)

// BuildOn evaluates excludearch/exclusivearch/buildarchs == ["noarch"]
// against arch.
func (r *Record) BuildOn(arch string) BuildResult {
	if exclude := r.strArray(header.TagExcludeArch); contains(exclude, arch) {
		return BuildExcluded
	}
	if exclusive := r.strArray(header.TagExclusiveArch); len(exclusive) > 0 && !contains(exclusive, arch) {
		return BuildExcluded
	}
	if ba := r.strArray(header.TagBuildArchs); len(ba) == 1 && ba[0] == "noarch" {
		return BuildNoarch
	}
	return BuildNormal
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// IsTrivialScript reports whether script contains only blank lines or
// lines starting with "#", the rule the original reader used to skip
// logging no-op trigger/install scripts (supplementing spec.md, which
// names triggers but not this classification).
func IsTrivialScript(script string) bool {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line[0] != '#' {
			return false
		}
	}
	return true
}

// SameSourceRPM reports whether a and b were almost certainly built from
// the same source package: either their signature-header md5 sums agree,
// or every regular file they both carry has a matching (name, md5)
// (supplementing spec.md's package record with the original reader's
// sameSrcRpm, used to collapse redundant source-package churn).
func SameSourceRPM(a, b *Record, aMD5, bMD5 []byte) bool {
	if len(aMD5) > 0 && len(bMD5) > 0 {
		return equalBytes(aMD5, bMD5)
	}
	af, bf := fileDigests(a), fileDigests(b)
	if len(af) == 0 || len(bf) == 0 {
		return false
	}
	for name, digest := range af {
		if d, ok := bf[name]; ok && d != digest {
			return false
		}
	}
	return true
}

// FileDigests returns the per-file digest list in the same order as
// Filenames, for regular files; the entry for a non-regular-file index is
// the empty string. Used by packages that need to compare file content
// across records without duplicating header tag lookups (spec ยง4.6).
func (r *Record) FileDigests() []string { return r.strArray(header.TagFileDigests) }

// FileModes returns the per-file mode list in the same order as Filenames.
func (r *Record) FileModes() []int32 { return r.int32Array(header.TagFileModes) }

// FileFlags returns the per-file rpmfileAttrs bitmask list (ghost, config,
// doc, ...) in the same order as Filenames.
func (r *Record) FileFlags() []int32 { return r.int32Array(header.TagFileFlags) }

// FileSizes returns the per-file size list in the same order as Filenames.
func (r *Record) FileSizes() []int32 { return r.int32Array(header.TagFileSizes) }

// FileDevices returns the per-file device-id list (the device a regular
// file's inode lives on, not a device node's rdev) in the same order as
// Filenames, used for hardlink clustering (spec ยง4.4) and cpio verification.
func (r *Record) FileDevices() []int32 { return r.int32Array(header.TagFileDevices) }

// FileInodes returns the per-file inode list in the same order as
// Filenames, used for hardlink clustering (spec ยง4.4).
func (r *Record) FileInodes() []int32 { return r.int32Array(header.TagFileInodes) }

// FileLinkTos returns the per-file symlink target list in the same order as
// Filenames; the entry for a non-symlink index is the empty string.
func (r *Record) FileLinkTos() []string { return r.strArray(header.TagFileLinkTos) }

func fileDigests(r *Record) map[string]string {
	names := r.Filenames()
	digests := r.strArray(header.TagFileDigests)
	modes := r.int32Array(header.TagFileModes)
	out := make(map[string]string)
	for i, n := range names {
		if i >= len(modes) || modes[i]&0o170000 != 0o100000 {
			continue
		}
		if i < len(digests) {
			out[n] = digests[i]
		}
	}
	return out
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
