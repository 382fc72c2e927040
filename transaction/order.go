package transaction

import (
	"context"

	"github.com/quay/zlog"

	"github.com/quay/rpmplan/pkg"
	"github.com/quay/rpmplan/resolver"
)

// RPMSENSE bits relevant to prereq classification, matching the subset of
// oldpyrpm.py's RPMSENSE_* constants operationFlag needs.
const (
	senseInterp        = 1 << 8
	sensePrereq        = 1 << 6
	senseScriptPre     = (1 << 9) | sensePrereq
	senseScriptPost    = (1 << 10) | sensePrereq
	senseScriptPreun   = (1 << 11) | sensePrereq
	senseScriptPostun  = (1 << 12) | sensePrereq
	senseScriptVerify  = 1 << 13
	senseFindRequires  = 1 << 14
	senseScriptPrep    = 1 << 20
	senseScriptBuild   = 1 << 21
	senseScriptInstall = 1 << 22
	senseScriptClean   = 1 << 23
	senseRPMLib        = (1 << 24) | sensePrereq
	senseKeyring       = 1 << 26
)

const allRequiresMask = senseInterp | senseScriptPre | senseScriptPost |
	senseScriptPreun | senseScriptPostun | senseScriptVerify |
	senseFindRequires | senseScriptPrep | senseScriptBuild |
	senseScriptInstall | senseScriptClean | senseRPMLib | senseKeyring

func notPrereq(x int32) int32 { return x &^ sensePrereq }

var installOnlyMask = notPrereq(senseScriptPre | senseScriptPost | senseRPMLib | senseKeyring)
var eraseOnlyMask = notPrereq(senseScriptPreun | senseScriptPostun)

func isLegacyPrereq(flag int32) bool { return flag&allRequiresMask == sensePrereq }
func isInstallPrereq(flag int32) bool { return flag&installOnlyMask != 0 }
func isErasePrereq(flag int32) bool   { return flag&eraseOnlyMask != 0 }

// operationFlag classifies a requirement flag as HARD or SOFT for the
// given operation, matching oldpyrpm.py's operationFlag.
func operationFlag(flag int32, op Op) Hardness {
	if isLegacyPrereq(flag) ||
		(op == OpErase && isErasePrereq(flag)) ||
		(op != OpErase && isInstallPrereq(flag)) {
		return Hard
	}
	return Soft
}

// Step is one planned action: install, update, or erase a package.
type Step struct {
	Op     Op
	Record *pkg.Record
}

// Orderer plans a transaction: a set of package installs (some of which
// replace or obsolete currently-installed packages) plus a set of
// explicit erasures, matching RpmOrderer.
type Orderer struct {
	installs  []*pkg.Record
	updates   map[*pkg.Record][]*pkg.Record
	obsoletes map[*pkg.Record][]*pkg.Record
	erases    []*pkg.Record
	resolver  *resolver.Resolver
}

// NewOrderer builds an Orderer. updates and obsoletes map a new package to
// the old packages it replaces/obsoletes; those old packages are dropped
// from erases if present there too, matching RpmOrderer.__init__.
//
// resolver must have been built from exactly the union of installs and
// erases: genRelations looks up every package's requirements against the
// resolver's global requirement index, so a package missing from that
// index contributes no dependency arcs; arcs to providers outside the set
// being ordered are skipped.
func NewOrderer(installs []*pkg.Record, updates, obsoletes map[*pkg.Record][]*pkg.Record, erases []*pkg.Record, res *resolver.Resolver) *Orderer {
	o := &Orderer{
		installs:  installs,
		updates:   updates,
		obsoletes: obsoletes,
		erases:    append([]*pkg.Record(nil), erases...),
		resolver:  res,
	}
	for _, olds := range updates {
		o.dropErases(olds)
	}
	for _, olds := range obsoletes {
		o.dropErases(olds)
	}
	return o
}

func (o *Orderer) dropErases(olds []*pkg.Record) {
	for _, old := range olds {
		for i, e := range o.erases {
			if e == old {
				o.erases = append(o.erases[:i], o.erases[i+1:]...)
				break
			}
		}
	}
}

// Order plans the full transaction, returning an operation sequence that
// honors every dependency arc it could resolve, matching
// RpmOrderer.order.
func (o *Orderer) Order(ctx context.Context) ([]Step, error) {
	var order []*pkg.Record
	if len(o.installs) > 0 {
		rel := o.genRelations(o.installs, OpInstall)
		part, err := rel.genOrder()
		if err != nil {
			return nil, err
		}
		order = append(order, part...)
	}
	if len(o.erases) > 0 {
		rel := o.genRelations(o.erases, OpErase)
		part, err := rel.genOrder()
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(part)-1; i < j; i, j = i+1, j-1 {
			part[i], part[j] = part[j], part[i]
		}
		order = append(order, part...)
	}
	steps := o.genOperations(ctx, order)
	packagesOrdered.Observe(float64(len(steps)))
	return steps, nil
}

// genRelations builds the dependency graph for pkgs under operation,
// matching RpmOrderer.genRelations.
func (o *Orderer) genRelations(pkgs []*pkg.Record, op Op) *graph {
	g := newGraph(pkgs)
	for _, grp := range o.resolver.AllRequires() {
		n := grp.Dep.Name
		if len(n) >= 7 && (n[:7] == "rpmlib(" || n[:7] == "config(") {
			continue
		}
		resolved := o.resolver.SearchProvides(n, grp.Dep.Flags, grp.Dep.Version)
		if len(resolved) == 0 {
			continue
		}
		flag := operationFlag(grp.Dep.Flags, op)
		for _, p := range grp.Records {
			if containsRecord(resolved, p) {
				continue
			}
			rel, ok := g.rel[p]
			if !ok {
				continue
			}
			for _, pre := range resolved {
				preRel, ok := g.rel[pre]
				if !ok {
					continue
				}
				if flag&Hard != 0 {
					rel.pre[pre] = flag
					preRel.post[p] = true
				} else if _, exists := rel.pre[pre]; !exists {
					rel.pre[pre] = flag
					preRel.post[p] = true
				}
			}
		}
	}
	return g
}

// genOperations turns an ordered package list into the operation sequence,
// interleaving in the erase of every package an install obsoletes or
// updates right after that install, matching RpmOrderer.genOperations.
func (o *Orderer) genOperations(ctx context.Context, order []*pkg.Record) []Step {
	eraseSet := make(map[*pkg.Record]bool, len(o.erases))
	for _, p := range o.erases {
		eraseSet[p] = true
	}
	var ops []Step
	for _, r := range order {
		if eraseSet[r] {
			ops = append(ops, Step{Op: OpErase, Record: r})
			continue
		}
		op := OpInstall
		if _, ok := o.updates[r]; ok {
			op = OpUpdate
		}
		ops = append(ops, Step{Op: op, Record: r})
		if olds, ok := o.obsoletes[r]; ok {
			ops = append(ops, o.genEraseOps(ctx, olds)...)
		}
		if olds, ok := o.updates[r]; ok {
			ops = append(ops, o.genEraseOps(ctx, olds)...)
		}
	}
	return ops
}

// genEraseOps orders a set of packages being removed as a side effect of
// an install (an update or obsolete), matching RpmOrderer._genEraseOps. If
// the sub-transaction can't be ordered (a resolver built only from the
// outer transaction's install/erase set will usually miss requirements for
// these side-effect erasures), it falls back to erasing list in the given
// order rather than failing the whole plan.
func (o *Orderer) genEraseOps(ctx context.Context, list []*pkg.Record) []Step {
	if len(list) == 1 {
		return []Step{{Op: OpErase, Record: list[0]}}
	}
	sub := NewOrderer(nil, nil, nil, list, o.resolver)
	steps, err := sub.Order(ctx)
	if err != nil {
		zlog.Debug(ctx).
			Err(err).
			Int("packages", len(list)).
			Msg("unable to order side-effect erasures, using declaration order")
		out := make([]Step, len(list))
		for i, p := range list {
			out[i] = Step{Op: OpErase, Record: p}
		}
		return out
	}
	return steps
}
