package pkg

// Incompatible is the distance value ArchDistance reports for two archs
// that share no compatibility relationship at all (spec ยง4.5).
const Incompatible = 999

// archCompats maps an arch to its compatible archs, best match first,
// ported from the original reader's arch_compats table.
var archCompats = map[string][]string{
	"athlon": {"i686", "i586", "i486", "i386"},
	"i686":   {"i586", "i486", "i386"},
	"i586":   {"i486", "i386"},
	"i486":   {"i386"},

	"x86_64": {"amd64", "athlon", "i686", "i586", "i486", "i386"},
	"amd64":  {"x86_64", "athlon", "i686", "i586", "i486", "i386"},
	"ia32e":  {"x86_64", "athlon", "i686", "i586", "i486", "i386"},

	"ia64": {"i686", "i586", "i486", "i386"},

	"alphaev67":  {"alphaev6", "alphapca56", "alphaev56", "alphaev5", "alpha", "axp"},
	"alphaev6":   {"alphapca56", "alphaev56", "alphaev5", "alpha", "axp"},
	"alphapca56": {"alphaev56", "alphaev5", "alpha", "axp"},
	"alphaev56":  {"alphaev5", "alpha", "axp"},
	"alphaev5":   {"alpha", "axp"},
	"alpha":      {"axp"},

	"powerpc":      {"ppc", "rs6000"},
	"powerppc":     {"ppc", "rs6000"},
	"ppc64":        {"ppc", "rs6000"},
	"ppc":          {"rs6000"},
	"ppc64pseries": {"ppc64", "ppc", "rs6000"},
	"ppc64iseries": {"ppc64", "ppc", "rs6000"},

	"sun4c":   {"sparc"},
	"sun4d":   {"sparc"},
	"sun4m":   {"sparc"},
	"sun4u":   {"sparc64", "sparcv9", "sparc"},
	"sparc64": {"sparcv9", "sparc"},
	"sparcv9": {"sparc"},
	"sparcv8": {"sparc"},

	"hppa2.0": {"hppa1.2", "hppa1.1", "hppa1.0", "parisc"},
	"hppa1.2": {"hppa1.1", "hppa1.0", "parisc"},
	"hppa1.1": {"hppa1.0", "parisc"},
	"hppa1.0": {"parisc"},

	"armv4l": {"armv3l"},

	"s390x": {"s390"},
}

// buildArchTranslate aliases build-only arch spellings to their canonical
// name, ported from the original reader's buildarchtranslate table.
var buildArchTranslate = map[string]string{
	"amd64": "x86_64",
	"ia32e": "x86_64",
}

// BuildArchTranslate resolves a build-time arch alias to its canonical
// name, passing unrecognized archs through unchanged.
func BuildArchTranslate(arch string) string {
	if t, ok := buildArchTranslate[arch]; ok {
		return t
	}
	return arch
}

// ArchDistance reports how compatible arch1 is with arch2, from arch2's
// point of view: 0 for "noarch", 1 for an exact match, 2+index for a
// listed compatible arch, or Incompatible (spec ยง4.5).
func ArchDistance(arch1, arch2 string) int {
	if arch1 == "noarch" {
		return 0
	}
	if arch1 == arch2 {
		return 1
	}
	compats := archCompats[arch2]
	for i, a := range compats {
		if a == arch1 {
			return i + 2
		}
	}
	return Incompatible
}
