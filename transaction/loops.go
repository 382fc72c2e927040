package transaction

import "github.com/quay/rpmplan/pkg"

// loop is a cycle: a sequence of packages in reverse dependency order,
// starting and ending with the same package, matching the tuples
// RpmRelations._detectLoops/detectLoops produce.
type loop []*pkg.Record

// detectLoops walks every node with a depth-first search, returning every
// cycle found, matching RpmRelations.detectLoops.
func (g *graph) detectLoops() []loop {
	var loops []loop
	used := make(map[*pkg.Record]bool)
	for _, p := range g.order {
		if !used[p] {
			g.detectLoopsDFS(nil, p, &loops, used)
		}
	}
	return loops
}

func (g *graph) detectLoopsDFS(path []*pkg.Record, p *pkg.Record, loops *[]loop, used map[*pkg.Record]bool) {
	used[p] = true
	for pre := range g.rel[p].pre {
		if i := indexOf(path, pre); i != -1 {
			w := append(append(loop(nil), path[i:]...), p, pre)
			*loops = append(*loops, w)
			continue
		}
		if !used[pre] {
			w := append(append([]*pkg.Record(nil), path...), p)
			g.detectLoopsDFS(w, pre, loops, used)
		}
	}
}

func indexOf(s []*pkg.Record, x *pkg.Record) int {
	for i, v := range s {
		if v == x {
			return i
		}
	}
	return -1
}

// counter tallies how many loops in a batch traverse each (node, next)
// arc, matching RpmRelations.genCounter.
type counter map[*pkg.Record]map[*pkg.Record]int

func genCounter(loops []loop) counter {
	c := make(counter)
	for _, lp := range loops {
		for j := 0; j < len(lp)-1; j++ {
			node, next := lp[j], lp[j+1]
			if c[node] == nil {
				c[node] = make(map[*pkg.Record]int)
			}
			c[node][next]++
		}
	}
	return c
}

// breakupLoop drops one arc in lp, preferring a soft arc over a hard one
// unless none exists, matching RpmRelations.breakupLoop. It reports
// whether an arc was found to drop.
func (g *graph) breakupLoop(loops []loop, lp loop) bool {
	c := genCounter(loops)
	if g.breakupLoopOnce(c, lp, false) {
		return true
	}
	return g.breakupLoopOnce(c, lp, true)
}

func (g *graph) breakupLoopOnce(c counter, lp loop, hard bool) bool {
	var virtNode, virtNext *pkg.Record
	virtMax := 0
	var maxNode, maxNext *pkg.Record
	max := 0
	for j := 0; j < len(lp)-1; j++ {
		node, next := lp[j], lp[j+1]
		flag := g.rel[node].pre[next]
		if !hard && flag&Hard != 0 {
			continue
		}
		if flag&Virtual != 0 {
			if virtMax < c[node][next] {
				virtNode, virtNext, virtMax = node, next, c[node][next]
			}
		} else if max < c[node][next] {
			maxNode, maxNext, max = node, next, c[node][next]
		}
	}
	switch {
	case virtNode != nil:
		g.dropRelation(virtNode, virtNext)
		return true
	case maxNode != nil:
		g.dropRelation(maxNode, maxNext)
		return true
	default:
		return false
	}
}

// dropRelation removes the "node requires next" arc and, to preserve
// transitive ordering, adds a VIRTUAL arc from every package that required
// node directly to next, matching RpmRelations._dropRelation.
func (g *graph) dropRelation(node, next *pkg.Record) {
	hard := g.rel[node].pre[next]&Hard != 0
	delete(g.rel[node].pre, next)
	delete(g.rel[next].post, node)
	g.dropped[node] = append(g.dropped[node], next)

	for p := range g.rel[node].post {
		if p == next || p == node {
			continue
		}
		if containsRecord(g.dropped[p], next) {
			continue
		}
		if _, ok := g.rel[p].pre[next]; !ok {
			req := Soft
			if hard && g.rel[p].pre[node]&Hard != 0 {
				req = Hard
			}
			g.rel[p].pre[next] = Virtual | req
		}
		g.rel[next].post[p] = true
	}
}

// sortLoops orders loops by decreasing preference to break them: fewer
// dependencies on packages outside the loop first, more packages depending
// on the loop as a tiebreaker, matching RpmRelations.sortLoops.
func (g *graph) sortLoops(loops []loop) []loop {
	var loopNodes []*pkg.Record
	for _, lp := range loops {
		for j := 0; j < len(lp)-1; j++ {
			if !containsRecord(loopNodes, lp[j]) {
				loopNodes = append(loopNodes, lp[j])
			}
		}
	}

	relations := make([]int, len(loops))
	requires := make([]int, len(loops))
	for li, lp := range loops {
		for j := 0; j < len(lp)-1; j++ {
			p := lp[j]
			for pre := range g.rel[p].pre {
				if containsRecord(loopNodes, pre) && !containsRecord(lp, pre) {
					relations[li]++
				}
			}
			for post := range g.rel[p].post {
				if !containsRecord(lp, post) {
					requires[li]++
				}
			}
		}
	}

	order := make([]int, 0, len(loops))
	for li := range loops {
		inserted := false
		for i, oi := range order {
			if relations[li] < relations[oi] ||
				(relations[li] == relations[oi] && requires[li] > requires[oi]) {
				order = append(order[:i], append([]int{li}, order[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted {
			order = append(order, li)
		}
	}

	out := make([]loop, len(order))
	for i, li := range order {
		out[i] = loops[li]
	}
	return out
}

// genOrder repeatedly strips leaf nodes, falling back to cycle detection
// and breaking when none remain, matching RpmRelations._genOrder.
func (g *graph) genOrder() ([]*pkg.Record, error) {
	var order, last []*pkg.Record
	for g.len() > 0 {
		g.separatePostLeafNodes(&last)
		if g.len() == 0 {
			break
		}
		if next := g.getNextLeafNode(); next != nil {
			order = append(order, next)
			continue
		}
		loops := g.detectLoops()
		if len(loops) < 1 {
			return nil, ErrCycle
		}
		sorted := g.sortLoops(loops)
		if !g.breakupLoop(loops, sorted[0]) {
			return nil, ErrCycle
		}
		loopsBroken.Inc()
	}
	return append(order, last...), nil
}
