package header

import "fmt"

// Tag is the numeric key identifying a header entry.
//
// Numbering matches upstream rpm's rpmtag.h (as mirrored by the teacher's
// internal/rpm/rpmdb/rpm_tag.go) so that headers produced by real tooling
// decode correctly; rpmplan only needs a subset of the full registry to
// satisfy spec ยง3/ยง6, but keeps the real numeric IDs for the tags it does
// know about.
type Tag int32

// String returns the tag's canonical registry name, falling back to a
// numeric form for tags rpmplan doesn't know about (spec ยง6: unknown tags
// are skipped, not rejected).
func (t Tag) String() string {
	if name, _, ok := Lookup(t); ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", int32(t))
}

// Region-boundary and I18n-table tags (spec ยง3 "immutable region").
const (
	TagHeaderImage      Tag = 61
	TagHeaderSignatures Tag = 62
	TagHeaderImmutable  Tag = 63
	TagHeaderRegions    Tag = 64
	TagHeaderI18nTable  Tag = 100
)

// Signature header tags.
const (
	TagSigSize       Tag = 257
	TagSigPGP        Tag = 259
	TagSigMD5        Tag = 261
	TagSigGPG        Tag = 262
	TagPubKeys       Tag = 266
	TagDSAHeader     Tag = 267
	TagRSAHeader     Tag = 268
	TagSHA1Header    Tag = 269
	TagLongSigSize   Tag = 270
	TagLongArchSize  Tag = 271
	TagSHA256Header  Tag = 273

	// TagPayloadSize is synthetic: rpmplan's own name for the decompressed
	// payload length, never stored in a real header. Numbered well outside
	// rpm's tag space so it can never collide with a real tag id.
	TagPayloadSize Tag = 1 << 20
)

// Main header tags.
const (
	TagName          Tag = 1000
	TagVersion       Tag = 1001
	TagRelease       Tag = 1002
	TagEpoch         Tag = 1003
	TagSummary       Tag = 1004
	TagDescription   Tag = 1005
	TagBuildTime     Tag = 1006
	TagBuildHost     Tag = 1007
	TagInstallTime   Tag = 1008
	TagSize          Tag = 1009
	TagDistribution  Tag = 1010
	TagVendor        Tag = 1011
	TagLicense       Tag = 1014
	TagPackager      Tag = 1015
	TagGroup         Tag = 1016
	TagSource        Tag = 1018
	TagPatch         Tag = 1019
	TagURL           Tag = 1020
	TagOS            Tag = 1021
	TagArch          Tag = 1022
	TagPreInstall    Tag = 1023
	TagPostInstall   Tag = 1024
	TagPreUninstall  Tag = 1025
	TagPostUninstall Tag = 1026
	TagOldFilenames  Tag = 1027

	TagFileSizes     Tag = 1028
	TagFileStates    Tag = 1029
	TagFileModes     Tag = 1030
	TagFileRDevs     Tag = 1033
	TagFileMTimes    Tag = 1034
	TagFileDigests   Tag = 1035 // "filemd5s" canonically
	TagFileLinkTos   Tag = 1036
	TagFileFlags     Tag = 1037
	TagFileUsername  Tag = 1039
	TagFileGroupname Tag = 1040
	TagIcon          Tag = 1043
	TagSourceRPM     Tag = 1044

	TagArchiveSize Tag = 1046

	TagProvideName    Tag = 1047
	TagRequireFlags   Tag = 1048
	TagRequireName    Tag = 1049
	TagRequireVersion Tag = 1050

	TagConflictFlags   Tag = 1053
	TagConflictName    Tag = 1054
	TagConflictVersion Tag = 1055

	TagExcludeArch   Tag = 1059
	TagExcludeOS     Tag = 1060
	TagExclusiveArch Tag = 1061
	TagExclusiveOS   Tag = 1062

	TagRPMVersion       Tag = 1064
	TagTriggerScripts   Tag = 1065
	TagTriggerName      Tag = 1066
	TagTriggerVersion   Tag = 1067
	TagTriggerFlags     Tag = 1068
	TagTriggerIndex     Tag = 1069
	TagChangelogTime    Tag = 1080
	TagChangelogName    Tag = 1081
	TagChangelogText    Tag = 1082

	TagPreReq              Tag = 1084
	TagBuildArchs          Tag = 1089
	TagObsoleteName        Tag = 1090
	TagTriggerScriptProg   Tag = 1092
	TagFileDevices         Tag = 1095
	TagFileInodes          Tag = 1096
	TagSourcePackage       Tag = 1106
	TagProvideFlags        Tag = 1112
	TagProvideVersion      Tag = 1113
	TagObsoleteFlags       Tag = 1114
	TagObsoleteVersion     Tag = 1115
	TagDirindexes          Tag = 1116
	TagBasenames           Tag = 1117
	TagDirnames            Tag = 1118
	TagPayloadFormat       Tag = 1124
	TagPayloadCompressor   Tag = 1125
	TagPayloadFlags        Tag = 1126
	TagInstallColor        Tag = 1127
	TagInstallTid          Tag = 1128
	TagRemoveTid           Tag = 1129
	TagFileColors          Tag = 1140
)

// Flag bits describing peculiarities of a tag registration (spec ยง3, ยง9).
type tagFlag uint8

const (
	flagLegacy tagFlag = 1 << iota
	flagSrcOnly
	flagBinOnly
	flagSigned32
	// flagInstallOnly marks a tag that only ever appears once a package has
	// been installed (written by the installer, never present in a built
	// package's own header); the re-emit check (spec ยง4.9) groups these into
	// header.Encode's separate install-only emission group.
	flagInstallOnly
)

// alias describes the "second occurrence binds to a *2 name" policy used by
// the installed-package database for a small allow-list of tags (spec ยง3).
type alias struct {
	of   Tag // the tag this is the *2 alias of
	name string
}

// entry is one row of the tag registry.
type entry struct {
	tag   Tag
	name  string
	kind  Kind
	count int // fixed element count, or -1 for "any"
	flags tagFlag
}

// registry is the known-tag table: numeric id -> (type, count constraint,
// flags, canonical name). Decode must accept tags absent from this table by
// skipping them (spec ยง6); encode must never invent one.
var registry []entry

func init() { buildRegistry() }

var byName = map[string]Tag{}
var byTag = map[Tag]entry{}

// aliases maps a Tag's "*2" alias counterpart, used by the installed
// database's duplicate-tag convention (spec ยง3, ยง9).
var aliases = map[Tag]Tag{}

func reg(tag Tag, name string, kind Kind, count int, flags tagFlag) {
	e := entry{tag: tag, name: name, kind: kind, count: count, flags: flags}
	registry = append(registry, e)
	byName[name] = tag
	byTag[tag] = e
}

func buildRegistry() []entry {
	registry = nil

	reg(TagHeaderSignatures, "header_signatures", TypeBin, 16, 0)
	reg(TagHeaderImmutable, "immutable", TypeBin, 16, 0)
	reg(TagHeaderI18nTable, "headeri18ntable", TypeStringArray, -1, 0)

	reg(TagSigSize, "size_in_sig", TypeInt32, 1, flagSigned32)
	reg(TagSigPGP, "pgp", TypeBin, -1, 0)
	reg(TagSigMD5, "md5", TypeBin, 16, 0)
	reg(TagSigGPG, "gpg", TypeBin, -1, 0)
	reg(TagPubKeys, "pubkeys", TypeStringArray, -1, 0)
	reg(TagDSAHeader, "dsaheader", TypeBin, -1, 0)
	reg(TagRSAHeader, "rsaheader", TypeBin, -1, 0)
	reg(TagSHA1Header, "sha1header", TypeString, 1, 0)
	reg(TagLongSigSize, "longsigsize", TypeInt64, 1, 0)
	reg(TagLongArchSize, "longarchivesize", TypeInt64, 1, 0)
	reg(TagSHA256Header, "sha256header", TypeString, 1, 0)
	reg(TagPayloadSize, "payloadsize", TypeInt32, 1, flagSigned32)

	reg(TagName, "name", TypeString, 1, 0)
	reg(TagVersion, "version", TypeString, 1, 0)
	reg(TagRelease, "release", TypeString, 1, 0)
	reg(TagEpoch, "epoch", TypeInt32, 1, flagSigned32)
	reg(TagSummary, "summary", TypeI18nString, -1, 0)
	reg(TagDescription, "description", TypeI18nString, -1, 0)
	reg(TagBuildTime, "buildtime", TypeInt32, 1, flagSigned32)
	reg(TagBuildHost, "buildhost", TypeString, 1, 0)
	reg(TagInstallTime, "installtime", TypeInt32, 1, flagSigned32|flagInstallOnly)
	reg(TagSize, "size", TypeInt32, 1, flagSigned32)
	reg(TagDistribution, "distribution", TypeString, 1, 0)
	reg(TagVendor, "vendor", TypeString, 1, 0)
	reg(TagLicense, "license", TypeString, 1, 0)
	reg(TagPackager, "packager", TypeString, 1, 0)
	reg(TagGroup, "group", TypeGroup, -1, 0)
	reg(TagSource, "source", TypeStringArray, -1, flagSrcOnly)
	reg(TagPatch, "patch", TypeStringArray, -1, flagSrcOnly)
	reg(TagURL, "url", TypeString, 1, 0)
	reg(TagOS, "os", TypeString, 1, 0)
	reg(TagArch, "arch", TypeString, 1, 0)
	reg(TagPreInstall, "prein", TypeArgString, -1, flagBinOnly)
	reg(TagPostInstall, "postin", TypeArgString, -1, flagBinOnly)
	reg(TagPreUninstall, "preun", TypeArgString, -1, flagBinOnly)
	reg(TagPostUninstall, "postun", TypeArgString, -1, flagBinOnly)
	reg(TagOldFilenames, "oldfilenames", TypeStringArray, -1, flagLegacy)

	reg(TagFileSizes, "filesizes", TypeInt32, -1, 0)
	reg(TagFileStates, "filestates", TypeChar, -1, flagInstallOnly)
	reg(TagFileModes, "filemodes", TypeInt16, -1, 0)
	reg(TagFileRDevs, "filerdevs", TypeInt16, -1, 0)
	reg(TagFileMTimes, "filemtimes", TypeInt32, -1, flagSigned32)
	reg(TagFileDigests, "filemd5s", TypeStringArray, -1, 0)
	reg(TagFileLinkTos, "filelinktos", TypeStringArray, -1, 0)
	reg(TagFileFlags, "fileflags", TypeInt32, -1, flagSigned32)
	reg(TagFileUsername, "fileusername", TypeStringArray, -1, 0)
	reg(TagFileGroupname, "filegroupname", TypeStringArray, -1, 0)
	reg(TagIcon, "icon", TypeBin, -1, flagBinOnly)
	reg(TagSourceRPM, "sourcerpm", TypeString, 1, flagBinOnly)

	reg(TagArchiveSize, "archivesize", TypeInt32, 1, flagSigned32)

	reg(TagProvideName, "providename", TypeStringArray, -1, 0)
	reg(TagRequireFlags, "requireflags", TypeInt32, -1, 0)
	reg(TagRequireName, "requirename", TypeStringArray, -1, 0)
	reg(TagRequireVersion, "requireversion", TypeStringArray, -1, 0)

	reg(TagConflictFlags, "conflictflags", TypeInt32, -1, 0)
	reg(TagConflictName, "conflictname", TypeStringArray, -1, 0)
	reg(TagConflictVersion, "conflictversion", TypeStringArray, -1, 0)

	reg(TagExcludeArch, "excludearch", TypeStringArray, -1, 0)
	reg(TagExcludeOS, "excludeos", TypeStringArray, -1, 0)
	reg(TagExclusiveArch, "exclusivearch", TypeStringArray, -1, 0)
	reg(TagExclusiveOS, "exclusiveos", TypeStringArray, -1, 0)

	reg(TagRPMVersion, "rpmversion", TypeString, 1, 0)
	reg(TagTriggerScripts, "triggerscripts", TypeStringArray, -1, 0)
	reg(TagTriggerName, "triggername", TypeStringArray, -1, 0)
	reg(TagTriggerVersion, "triggerversion", TypeStringArray, -1, 0)
	reg(TagTriggerFlags, "triggerflags", TypeInt32, -1, 0)
	reg(TagTriggerIndex, "triggerindex", TypeInt32, -1, flagSigned32)
	reg(TagChangelogTime, "changelogtime", TypeInt32, -1, flagSigned32)
	reg(TagChangelogName, "changelogname", TypeStringArray, -1, 0)
	reg(TagChangelogText, "changelogtext", TypeStringArray, -1, 0)

	reg(TagPreReq, "prereq", TypeInt32, -1, flagLegacy)
	reg(TagBuildArchs, "buildarchs", TypeStringArray, -1, flagSrcOnly)
	reg(TagObsoleteName, "obsoletename", TypeStringArray, -1, 0)
	reg(TagTriggerScriptProg, "triggerscriptprog", TypeStringArray, -1, 0)
	reg(TagFileDevices, "filedevices", TypeInt32, -1, flagSigned32)
	reg(TagFileInodes, "fileinodes", TypeInt32, -1, flagSigned32)
	reg(TagSourcePackage, "sourcepackage", TypeInt32, 1, flagSigned32)

	reg(TagProvideFlags, "provideflags", TypeInt32, -1, 0)
	reg(TagProvideVersion, "provideversion", TypeStringArray, -1, 0)
	reg(TagObsoleteFlags, "obsoleteflags", TypeInt32, -1, 0)
	reg(TagObsoleteVersion, "obsoleteversion", TypeStringArray, -1, 0)

	reg(TagDirindexes, "dirindexes", TypeInt32, -1, flagSigned32)
	reg(TagBasenames, "basenames", TypeStringArray, -1, 0)
	reg(TagDirnames, "dirnames", TypeStringArray, -1, 0)

	reg(TagPayloadFormat, "payloadformat", TypeString, 1, 0)
	reg(TagPayloadCompressor, "payloadcompressor", TypeString, 1, 0)
	reg(TagPayloadFlags, "payloadflags", TypeString, 1, 0)
	reg(TagFileColors, "filecolors", TypeInt32, -1, flagSigned32)

	reg(TagInstallColor, "installcolor", TypeInt32, 1, flagSigned32|flagInstallOnly)
	reg(TagInstallTid, "installtid", TypeInt32, 1, flagSigned32|flagInstallOnly)
	reg(TagRemoveTid, "removetid", TypeInt32, 1, flagSigned32|flagInstallOnly)

	// The installed-database duplicate-tag allow-list (spec ยง3, ยง9): a
	// second occurrence of one of these three binds to its "*2" alias
	// instead of being rejected or overwriting the first.
	registerAlias(TagDirindexes, "dirindexes2")
	registerAlias(TagDirnames, "dirnames2")
	registerAlias(TagBasenames, "basenames2")

	return registry
}

func registerAlias(of Tag, name string) {
	// The alias tag shares the same on-disk numeric id family as its
	// original in real rpmdb dumps (it is disambiguated by store position,
	// not by tag number), but rpmplan needs a distinct Tag value to key its
	// own maps by; reuse the original's type/flags.
	orig := byTag[of]
	synth := Tag(int32(of) + 900000)
	e := entry{tag: synth, name: name, kind: orig.kind, count: orig.count, flags: orig.flags}
	byName[name] = synth
	byTag[synth] = e
	aliases[of] = synth
}

// Lookup returns the registry entry for tag, and whether it is known.
func Lookup(tag Tag) (name string, kind Kind, known bool) {
	e, ok := byTag[tag]
	if !ok {
		return "", 0, false
	}
	return e.name, e.kind, true
}

// TagByName returns the registered Tag for a canonical name, if any.
func TagByName(name string) (Tag, bool) {
	t, ok := byName[name]
	return t, ok
}

// AliasOf returns the "*2" alias Tag for tags that carry the duplicate-tag
// allow-list policy (dirindexes, dirnames, basenames), and whether tag has
// one.
func AliasOf(tag Tag) (Tag, bool) {
	t, ok := aliases[tag]
	return t, ok
}

// IsSigned32 reports whether tag's on-disk RPM_INT32 values should be
// interpreted as signed (spec ยง4.2, ยง9).
func IsSigned32(tag Tag) bool {
	e, ok := byTag[tag]
	return ok && e.flags&flagSigned32 != 0
}

// IsInstallOnly reports whether tag is only ever written once a package is
// installed, never present in a package's own built header (spec ยง4.9).
func IsInstallOnly(tag Tag) bool {
	e, ok := byTag[tag]
	return ok && e.flags&flagInstallOnly != 0
}

// InstallOnlyTags returns the install-only membership of every tag present
// in h, suitable for Encode's installOnly parameter when re-emitting an
// installed package's header.
func InstallOnlyTags(h *Header) map[Tag]bool {
	out := make(map[Tag]bool, len(h.Infos))
	for _, info := range h.Infos {
		if IsInstallOnly(info.Tag) {
			out[info.Tag] = true
		}
	}
	return out
}
