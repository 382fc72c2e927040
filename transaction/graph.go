package transaction

import "github.com/quay/rpmplan/pkg"

// relation holds a node's predecessors (pre, packages that must be
// installed before it) and successors (post, packages that depend on
// it), matching the original reader's Relation class.
type relation struct {
	pre  map[*pkg.Record]Hardness
	post map[*pkg.Record]bool
}

func newRelation() *relation {
	return &relation{pre: make(map[*pkg.Record]Hardness), post: make(map[*pkg.Record]bool)}
}

// graph is a dependency graph over a fixed package set, matching
// RpmRelations. order tracks insertion order since a Go map iterates in
// random order and the original's HashList does not.
type graph struct {
	rel     map[*pkg.Record]*relation
	order   []*pkg.Record
	dropped map[*pkg.Record][]*pkg.Record
}

func newGraph(pkgs []*pkg.Record) *graph {
	g := &graph{
		rel:     make(map[*pkg.Record]*relation, len(pkgs)),
		order:   append([]*pkg.Record(nil), pkgs...),
		dropped: make(map[*pkg.Record][]*pkg.Record),
	}
	for _, p := range pkgs {
		g.rel[p] = newRelation()
	}
	return g
}

func (g *graph) len() int { return len(g.order) }

// removeRelation deletes p from the graph, along with every arc touching
// it, matching RpmRelations.removeRelation.
func (g *graph) removeRelation(p *pkg.Record) {
	rel := g.rel[p]
	for pre := range rel.pre {
		delete(g.rel[pre].post, p)
	}
	for post := range rel.post {
		delete(g.rel[post].pre, p)
	}
	delete(g.rel, p)
	for i, x := range g.order {
		if x == p {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// separatePostLeafNodes repeatedly moves nodes with no successors to the
// front of last, stopping once every remaining node has a successor
// (implying a cycle), matching RpmRelations.separatePostLeafNodes.
func (g *graph) separatePostLeafNodes(last *[]*pkg.Record) {
	for g.len() > 0 {
		i := 0
		found := false
		for i < g.len() {
			p := g.order[i]
			if len(g.rel[p].post) == 0 {
				*last = append([]*pkg.Record{p}, *last...)
				g.removeRelation(p)
				found = true
			} else {
				i++
			}
		}
		if !found {
			break
		}
	}
}

// getNextLeafNode returns a node with no predecessors on which the most
// other nodes depend, removing it from the graph, matching
// RpmRelations.getNextLeafNode.
func (g *graph) getNextLeafNode() *pkg.Record {
	var next *pkg.Record
	nextPostLen := -1
	for _, p := range g.order {
		rel := g.rel[p]
		if len(rel.pre) == 0 && len(rel.post) > nextPostLen {
			next = p
			nextPostLen = len(rel.post)
		}
	}
	if next != nil {
		g.removeRelation(next)
	}
	return next
}

func containsRecord(s []*pkg.Record, x *pkg.Record) bool {
	for _, v := range s {
		if v == x {
			return true
		}
	}
	return false
}
