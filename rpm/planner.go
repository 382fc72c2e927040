package rpm

import (
	"context"

	"github.com/quay/rpmplan/fileindex"
	"github.com/quay/rpmplan/pkg"
	"github.com/quay/rpmplan/resolver"
	"github.com/quay/rpmplan/transaction"
)

// Planner ties the dependency resolver, filename index, and transaction
// orderer together over one working set of packages: the top-level
// assembly spec.md §1 describes as resolving dependencies, detecting
// conflicts, and computing an install order in one pass.
type Planner struct {
	resolver *resolver.Resolver
	index    *fileindex.Index
}

// NewPlanner builds a Planner over records, the set of packages considered
// both for dependency resolution and file-conflict detection (normally the
// union of already-installed packages and the packages a transaction would
// add). [WithFileConflicts] controls whether file-ownership conflicts are
// tracked.
func NewPlanner(records []*pkg.Record, opts ...Option) *Planner {
	cfg := buildConfig(opts)
	idx := fileindex.New(cfg.checkFileConflicts)
	for _, r := range records {
		idx.AddPackage(r)
	}
	return &Planner{
		resolver: resolver.New(records, cfg.checkFileConflicts),
		index:    idx,
	}
}

// Conflicts reports every file owned by more than one planned package with
// disagreeing content (spec §4.6). Empty unless the planner was built with
// [WithFileConflicts].
func (p *Planner) Conflicts() []fileindex.Conflict { return p.index.Conflicts() }

// Order plans installs/updates/obsoletions/erases into a dependency-safe
// operation sequence (spec §4.8).
func (p *Planner) Order(ctx context.Context, installs []*pkg.Record, updates, obsoletes map[*pkg.Record][]*pkg.Record, erases []*pkg.Record) ([]transaction.Step, error) {
	o := transaction.NewOrderer(installs, updates, obsoletes, erases, p.resolver)
	return o.Order(ctx)
}

// Resolver exposes the underlying dependency resolver for callers that need
// direct provide/require queries beyond ordering.
func (p *Planner) Resolver() *resolver.Resolver { return p.resolver }
