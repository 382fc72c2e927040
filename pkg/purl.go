package pkg

import (
	"github.com/package-url/packageurl-go"
)

// PURLType is the package URL type for RPM packages.
const PURLType = "rpm"

// PURL builds a package-url for r, in the shape the rpm purl-spec defines:
// pkg:rpm/<name>@<version>-<release>?arch=<arch>&epoch=<epoch>.
func (r *Record) PURL() packageurl.PackageURL {
	qualifiers := map[string]string{"arch": r.Arch()}
	if epoch := r.Epoch(); epoch != "0" {
		qualifiers["epoch"] = epoch
	}
	return packageurl.PackageURL{
		Type:       PURLType,
		Name:       r.Name(),
		Version:    r.Version() + "-" + r.Release(),
		Qualifiers: packageurl.QualifiersFromMap(qualifiers),
	}
}
