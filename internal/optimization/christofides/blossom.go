package christofides

import (
	"math"

	"github.com/copyleftdev/tsp-mcp/internal/optimization/graph"
)

// blossomScale is the largest integer weight after scaling. Integer weights
// keep every dual update and slack test exact.
const blossomScale = 1 << 40

// blossomMatching returns a minimum-weight perfect matching of g, or nil if
// g has none. It runs Edmonds' weighted blossom algorithm for a
// maximum-cardinality maximum-weight matching on weights C - w, which is
// the minimum-weight perfect matching whenever a perfect matching exists.
func blossomMatching(g *graph.Graph) [][2]int {
	k := g.Len()
	edges := g.Edges()

	maxW := 0.0
	for _, e := range edges {
		if e.Weight > maxW {
			maxW = e.Weight
		}
	}
	scale := 1.0
	if maxW > 0 {
		scale = blossomScale / maxW
	}
	top := int64(blossomScale) + 1

	bm := newBlossomMatcher(k, len(edges))
	for i, e := range edges {
		// Doubled so that every S-S slack stays even and halves exactly.
		bm.edges[i] = blossomEdge{u: e.U, v: e.V, w: 2 * (top - int64(math.Round(e.Weight*scale)))}
	}
	mate := bm.solve()

	pairs := make([][2]int, 0, k/2)
	for v, u := range mate {
		if u < 0 {
			return nil
		}
		if v < u {
			pairs = append(pairs, [2]int{v, u})
		}
	}
	return pairs
}

type blossomEdge struct {
	u, v int
	w    int64
}

// blossomMatcher holds the state of one maximum-weight matching run.
// Vertices are 0..n-1 and non-trivial blossoms n..2n-1. An endpoint p
// refers to edges[p/2], and endpoint[p] is its vertex; p^1 is the other
// end of the same edge.
type blossomMatcher struct {
	n     int
	edges []blossomEdge

	endpoint  []int
	neighbend [][]int

	// mate[v] is the remote endpoint of v's matched edge, or -1.
	mate []int

	// label is 0 (free), 1 (S) or 2 (T); 5 marks a breadcrumb in scanBlossom.
	label    []int
	labelend []int

	inblossom        []int
	blossomparent    []int
	blossomchilds    [][]int
	blossombase      []int
	blossomendps     [][]int
	bestedge         []int
	blossombestedges [][]int
	unusedblossoms   []int
	dualvar          []int64
	allowedge        []bool
	queue            []int
}

func newBlossomMatcher(n, m int) *blossomMatcher {
	return &blossomMatcher{n: n, edges: make([]blossomEdge, m)}
}

func (bm *blossomMatcher) slack(k int) int64 {
	e := bm.edges[k]
	return bm.dualvar[e.u] + bm.dualvar[e.v] - 2*e.w
}

func (bm *blossomMatcher) leaves(b int, visit func(v int)) {
	if b < bm.n {
		visit(b)
		return
	}
	for _, t := range bm.blossomchilds[b] {
		bm.leaves(t, visit)
	}
}

// wrap maps a possibly negative child position into blossom b's child cycle.
func (bm *blossomMatcher) wrap(b, j int) int {
	l := len(bm.blossomchilds[b])
	return ((j % l) + l) % l
}

func (bm *blossomMatcher) assignLabel(w, t, p int) {
	b := bm.inblossom[w]
	bm.label[w], bm.label[b] = t, t
	bm.labelend[w], bm.labelend[b] = p, p
	bm.bestedge[w], bm.bestedge[b] = -1, -1
	switch t {
	case 1:
		bm.leaves(b, func(v int) { bm.queue = append(bm.queue, v) })
	case 2:
		base := bm.blossombase[b]
		bm.assignLabel(bm.endpoint[bm.mate[base]], 1, bm.mate[base]^1)
	}
}

// scanBlossom traces back from v and w to find the base of a new blossom,
// or returns -1 if the paths reach two different roots (an augmenting path).
func (bm *blossomMatcher) scanBlossom(v, w int) int {
	var path []int
	base := -1
	for v != -1 || w != -1 {
		b := bm.inblossom[v]
		if bm.label[b]&4 != 0 {
			base = bm.blossombase[b]
			break
		}
		path = append(path, b)
		bm.label[b] = 5
		if bm.labelend[b] == -1 {
			v = -1
		} else {
			v = bm.endpoint[bm.labelend[b]]
			b = bm.inblossom[v]
			v = bm.endpoint[bm.labelend[b]]
		}
		if w != -1 {
			v, w = w, v
		}
	}
	for _, b := range path {
		bm.label[b] = 1
	}
	return base
}

func (bm *blossomMatcher) addBlossom(base, k int) {
	v, w := bm.edges[k].u, bm.edges[k].v
	bb, bv, bw := bm.inblossom[base], bm.inblossom[v], bm.inblossom[w]

	b := bm.unusedblossoms[len(bm.unusedblossoms)-1]
	bm.unusedblossoms = bm.unusedblossoms[:len(bm.unusedblossoms)-1]
	bm.blossombase[b] = base
	bm.blossomparent[b] = -1
	bm.blossomparent[bb] = b

	var path, endps []int
	for bv != bb {
		bm.blossomparent[bv] = b
		path = append(path, bv)
		endps = append(endps, bm.labelend[bv])
		v = bm.endpoint[bm.labelend[bv]]
		bv = bm.inblossom[v]
	}
	path = append(path, bb)
	reverseInts(path)
	reverseInts(endps)
	endps = append(endps, 2*k)
	for bw != bb {
		bm.blossomparent[bw] = b
		path = append(path, bw)
		endps = append(endps, bm.labelend[bw]^1)
		w = bm.endpoint[bm.labelend[bw]]
		bw = bm.inblossom[w]
	}
	bm.blossomchilds[b] = path
	bm.blossomendps[b] = endps

	bm.label[b] = 1
	bm.labelend[b] = bm.labelend[bb]
	bm.dualvar[b] = 0
	bm.leaves(b, func(v int) {
		if bm.label[bm.inblossom[v]] == 2 {
			bm.queue = append(bm.queue, v)
		}
		bm.inblossom[v] = b
	})

	bestedgeto := make([]int, 2*bm.n)
	for i := range bestedgeto {
		bestedgeto[i] = -1
	}
	consider := func(k int) {
		j := bm.edges[k].v
		if bm.inblossom[j] == b {
			j = bm.edges[k].u
		}
		bj := bm.inblossom[j]
		if bj != b && bm.label[bj] == 1 &&
			(bestedgeto[bj] == -1 || bm.slack(k) < bm.slack(bestedgeto[bj])) {
			bestedgeto[bj] = k
		}
	}
	for _, sub := range path {
		if bm.blossombestedges[sub] == nil {
			bm.leaves(sub, func(v int) {
				for _, p := range bm.neighbend[v] {
					consider(p / 2)
				}
			})
		} else {
			for _, k := range bm.blossombestedges[sub] {
				consider(k)
			}
		}
		bm.blossombestedges[sub] = nil
		bm.bestedge[sub] = -1
	}

	best := make([]int, 0)
	for _, k := range bestedgeto {
		if k != -1 {
			best = append(best, k)
		}
	}
	bm.blossombestedges[b] = best
	bm.bestedge[b] = -1
	for _, k := range best {
		if bm.bestedge[b] == -1 || bm.slack(k) < bm.slack(bm.bestedge[b]) {
			bm.bestedge[b] = k
		}
	}
}

func (bm *blossomMatcher) expandBlossom(b int, endstage bool) {
	for _, s := range bm.blossomchilds[b] {
		bm.blossomparent[s] = -1
		switch {
		case s < bm.n:
			bm.inblossom[s] = s
		case endstage && bm.dualvar[s] == 0:
			bm.expandBlossom(s, endstage)
		default:
			bm.leaves(s, func(v int) { bm.inblossom[v] = s })
		}
	}

	if !endstage && bm.label[b] == 2 {
		// Relabel the children along the even-length path from the entry
		// child to the base.
		entrychild := bm.inblossom[bm.endpoint[bm.labelend[b]^1]]
		j := indexOf(bm.blossomchilds[b], entrychild)
		jstep, endptrick := -1, 1
		if j&1 != 0 {
			j -= len(bm.blossomchilds[b])
			jstep, endptrick = 1, 0
		}
		endps := bm.blossomendps[b]
		p := bm.labelend[b]
		for j != 0 {
			bm.label[bm.endpoint[p^1]] = 0
			bm.label[bm.endpoint[endps[bm.wrap(b, j-endptrick)]^endptrick^1]] = 0
			bm.assignLabel(bm.endpoint[p^1], 2, p)
			bm.allowedge[endps[bm.wrap(b, j-endptrick)]/2] = true
			j += jstep
			p = endps[bm.wrap(b, j-endptrick)] ^ endptrick
			bm.allowedge[p/2] = true
			j += jstep
		}
		bv := bm.blossomchilds[b][bm.wrap(b, j)]
		bm.label[bm.endpoint[p^1]], bm.label[bv] = 2, 2
		bm.labelend[bm.endpoint[p^1]], bm.labelend[bv] = p, p
		bm.bestedge[bv] = -1
		j += jstep
		for bm.blossomchilds[b][bm.wrap(b, j)] != entrychild {
			bv = bm.blossomchilds[b][bm.wrap(b, j)]
			if bm.label[bv] == 1 {
				j += jstep
				continue
			}
			labelled := -1
			bm.leaves(bv, func(v int) {
				if labelled == -1 && bm.label[v] != 0 {
					labelled = v
				}
			})
			if labelled != -1 {
				bm.label[labelled] = 0
				bm.label[bm.endpoint[bm.mate[bm.blossombase[bv]]]] = 0
				bm.assignLabel(labelled, 2, bm.labelend[labelled])
			}
			j += jstep
		}
	}

	bm.label[b], bm.labelend[b] = -1, -1
	bm.blossomchilds[b], bm.blossomendps[b] = nil, nil
	bm.blossombase[b] = -1
	bm.blossombestedges[b] = nil
	bm.bestedge[b] = -1
	bm.unusedblossoms = append(bm.unusedblossoms, b)
}

// augmentBlossom swaps matched and unmatched edges inside b along the path
// from vertex v to the base, so that v becomes the new base.
func (bm *blossomMatcher) augmentBlossom(b, v int) {
	t := v
	for bm.blossomparent[t] != b {
		t = bm.blossomparent[t]
	}
	if t >= bm.n {
		bm.augmentBlossom(t, v)
	}

	childs, endps := bm.blossomchilds[b], bm.blossomendps[b]
	i := indexOf(childs, t)
	j := i
	jstep, endptrick := -1, 1
	if i&1 != 0 {
		j -= len(childs)
		jstep, endptrick = 1, 0
	}
	for j != 0 {
		j += jstep
		t = childs[bm.wrap(b, j)]
		p := endps[bm.wrap(b, j-endptrick)] ^ endptrick
		if t >= bm.n {
			bm.augmentBlossom(t, bm.endpoint[p])
		}
		j += jstep
		t = childs[bm.wrap(b, j)]
		if t >= bm.n {
			bm.augmentBlossom(t, bm.endpoint[p^1])
		}
		bm.mate[bm.endpoint[p]] = p ^ 1
		bm.mate[bm.endpoint[p^1]] = p
	}

	bm.blossomchilds[b] = append(append([]int(nil), childs[i:]...), childs[:i]...)
	bm.blossomendps[b] = append(append([]int(nil), endps[i:]...), endps[:i]...)
	bm.blossombase[b] = bm.blossombase[bm.blossomchilds[b][0]]
}

func (bm *blossomMatcher) augmentMatching(k int) {
	e := bm.edges[k]
	for _, start := range [2][2]int{{e.u, 2*k + 1}, {e.v, 2 * k}} {
		s, p := start[0], start[1]
		for {
			bs := bm.inblossom[s]
			if bs >= bm.n {
				bm.augmentBlossom(bs, s)
			}
			bm.mate[s] = p
			if bm.labelend[bs] == -1 {
				break
			}
			t := bm.endpoint[bm.labelend[bs]]
			bt := bm.inblossom[t]
			s = bm.endpoint[bm.labelend[bt]]
			j := bm.endpoint[bm.labelend[bt]^1]
			if bt >= bm.n {
				bm.augmentBlossom(bt, j)
			}
			bm.mate[j] = bm.labelend[bt]
			p = bm.labelend[bt] ^ 1
		}
	}
}

func (bm *blossomMatcher) init() {
	n := bm.n
	bm.endpoint = make([]int, 2*len(bm.edges))
	bm.neighbend = make([][]int, n)
	var maxW int64
	for k, e := range bm.edges {
		bm.endpoint[2*k], bm.endpoint[2*k+1] = e.u, e.v
		bm.neighbend[e.u] = append(bm.neighbend[e.u], 2*k+1)
		bm.neighbend[e.v] = append(bm.neighbend[e.v], 2*k)
		if e.w > maxW {
			maxW = e.w
		}
	}

	bm.mate = filled(n, -1)
	bm.label = make([]int, 2*n)
	bm.labelend = filled(2*n, -1)
	bm.inblossom = make([]int, n)
	for v := range bm.inblossom {
		bm.inblossom[v] = v
	}
	bm.blossomparent = filled(2*n, -1)
	bm.blossomchilds = make([][]int, 2*n)
	bm.blossombase = filled(2*n, -1)
	for v := 0; v < n; v++ {
		bm.blossombase[v] = v
	}
	bm.blossomendps = make([][]int, 2*n)
	bm.bestedge = filled(2*n, -1)
	bm.blossombestedges = make([][]int, 2*n)
	bm.unusedblossoms = make([]int, 0, n)
	for b := n; b < 2*n; b++ {
		bm.unusedblossoms = append(bm.unusedblossoms, b)
	}
	bm.dualvar = make([]int64, 2*n)
	for v := 0; v < n; v++ {
		bm.dualvar[v] = maxW
	}
	bm.allowedge = make([]bool, len(bm.edges))
}

// solve returns mate as vertex indices, -1 for unmatched vertices.
func (bm *blossomMatcher) solve() []int {
	n := bm.n
	bm.init()

	for stage := 0; stage < n; stage++ {
		for i := range bm.label {
			bm.label[i] = 0
		}
		for i := range bm.bestedge {
			bm.bestedge[i] = -1
		}
		for b := n; b < 2*n; b++ {
			bm.blossombestedges[b] = nil
		}
		for i := range bm.allowedge {
			bm.allowedge[i] = false
		}
		bm.queue = bm.queue[:0]

		for v := 0; v < n; v++ {
			if bm.mate[v] == -1 && bm.label[bm.inblossom[v]] == 0 {
				bm.assignLabel(v, 1, -1)
			}
		}

		augmented := false
		for {
			for len(bm.queue) > 0 && !augmented {
				v := bm.queue[len(bm.queue)-1]
				bm.queue = bm.queue[:len(bm.queue)-1]

				for _, p := range bm.neighbend[v] {
					k := p / 2
					w := bm.endpoint[p]
					if bm.inblossom[v] == bm.inblossom[w] {
						continue
					}
					var kslack int64
					if !bm.allowedge[k] {
						kslack = bm.slack(k)
						if kslack <= 0 {
							bm.allowedge[k] = true
						}
					}
					switch {
					case bm.allowedge[k]:
						switch {
						case bm.label[bm.inblossom[w]] == 0:
							bm.assignLabel(w, 2, p^1)
						case bm.label[bm.inblossom[w]] == 1:
							if base := bm.scanBlossom(v, w); base >= 0 {
								bm.addBlossom(base, k)
							} else {
								bm.augmentMatching(k)
								augmented = true
							}
						case bm.label[w] == 0:
							bm.label[w] = 2
							bm.labelend[w] = p ^ 1
						}
					case bm.label[bm.inblossom[w]] == 1:
						b := bm.inblossom[v]
						if bm.bestedge[b] == -1 || kslack < bm.slack(bm.bestedge[b]) {
							bm.bestedge[b] = k
						}
					case bm.label[w] == 0:
						if bm.bestedge[w] == -1 || kslack < bm.slack(bm.bestedge[w]) {
							bm.bestedge[w] = k
						}
					}
					if augmented {
						break
					}
				}
			}
			if augmented {
				break
			}

			// No augmenting path with tight edges: adjust the duals.
			deltatype := -1
			var delta int64
			deltaedge, deltablossom := -1, -1

			for v := 0; v < n; v++ {
				if bm.label[bm.inblossom[v]] == 0 && bm.bestedge[v] != -1 {
					if d := bm.slack(bm.bestedge[v]); deltatype == -1 || d < delta {
						delta, deltatype, deltaedge = d, 2, bm.bestedge[v]
					}
				}
			}
			for b := 0; b < 2*n; b++ {
				if bm.blossomparent[b] == -1 && bm.label[b] == 1 && bm.bestedge[b] != -1 {
					if d := bm.slack(bm.bestedge[b]) / 2; deltatype == -1 || d < delta {
						delta, deltatype, deltaedge = d, 3, bm.bestedge[b]
					}
				}
			}
			for b := n; b < 2*n; b++ {
				if bm.blossombase[b] >= 0 && bm.blossomparent[b] == -1 && bm.label[b] == 2 &&
					(deltatype == -1 || bm.dualvar[b] < delta) {
					delta, deltatype, deltablossom = bm.dualvar[b], 4, b
				}
			}
			if deltatype == -1 {
				deltatype = 1
				delta = bm.dualvar[0]
				for v := 1; v < n; v++ {
					if bm.dualvar[v] < delta {
						delta = bm.dualvar[v]
					}
				}
				if delta < 0 {
					delta = 0
				}
			}

			for v := 0; v < n; v++ {
				switch bm.label[bm.inblossom[v]] {
				case 1:
					bm.dualvar[v] -= delta
				case 2:
					bm.dualvar[v] += delta
				}
			}
			for b := n; b < 2*n; b++ {
				if bm.blossombase[b] >= 0 && bm.blossomparent[b] == -1 {
					switch bm.label[b] {
					case 1:
						bm.dualvar[b] += delta
					case 2:
						bm.dualvar[b] -= delta
					}
				}
			}

			if deltatype == 1 {
				break
			}
			switch deltatype {
			case 2:
				bm.allowedge[deltaedge] = true
				i, j := bm.edges[deltaedge].u, bm.edges[deltaedge].v
				if bm.label[bm.inblossom[i]] == 0 {
					i = j
				}
				bm.queue = append(bm.queue, i)
			case 3:
				bm.allowedge[deltaedge] = true
				bm.queue = append(bm.queue, bm.edges[deltaedge].u)
			case 4:
				bm.expandBlossom(deltablossom, false)
			}
		}

		if !augmented {
			break
		}
		for b := n; b < 2*n; b++ {
			if bm.blossomparent[b] == -1 && bm.blossombase[b] >= 0 &&
				bm.label[b] == 1 && bm.dualvar[b] == 0 {
				bm.expandBlossom(b, true)
			}
		}
	}

	mate := make([]int, n)
	for v := range mate {
		mate[v] = -1
		if bm.mate[v] >= 0 {
			mate[v] = bm.endpoint[bm.mate[v]]
		}
	}
	return mate
}

func filled(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func indexOf(s []int, x int) int {
	for i, v := range s {
		if v == x {
			return i
		}
	}
	return -1
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
