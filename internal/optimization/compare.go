package optimization

import (
	"sort"
)

// Comparison relates two tours over the same point set.
type Comparison struct {
	// Common, OnlyA and OnlyB hold undirected edges as ordered index pairs.
	Common [][2]int `json:"common"`
	OnlyA  [][2]int `json:"only_a"`
	OnlyB  [][2]int `json:"only_b"`

	// Delta is b.Length - a.Length.
	Delta float64 `json:"delta"`
	// RelativePercent is Delta as a percentage of a.Length, 0 when a.Length is 0.
	RelativePercent float64 `json:"relative_percent"`
}

// Compare reports the shared and distinct edges of two closed tours and the
// difference in their lengths.
func Compare(a, b *Result) Comparison {
	ea, eb := tourEdgeSet(a.Tour), tourEdgeSet(b.Tour)

	c := Comparison{
		Common: [][2]int{},
		OnlyA:  [][2]int{},
		OnlyB:  [][2]int{},
		Delta:  b.Length - a.Length,
	}
	for k := range ea {
		if eb[k] {
			c.Common = append(c.Common, k)
		} else {
			c.OnlyA = append(c.OnlyA, k)
		}
	}
	for k := range eb {
		if !ea[k] {
			c.OnlyB = append(c.OnlyB, k)
		}
	}
	sortPairs(c.Common)
	sortPairs(c.OnlyA)
	sortPairs(c.OnlyB)

	if a.Length > 0 {
		c.RelativePercent = c.Delta / a.Length * 100
	}
	return c
}

func tourEdgeSet(tour []int) map[[2]int]bool {
	set := make(map[[2]int]bool, len(tour))
	for i := 0; i+1 < len(tour); i++ {
		set[Edge{U: tour[i], V: tour[i+1]}.Key()] = true
	}
	return set
}

func sortPairs(p [][2]int) {
	sort.Slice(p, func(i, j int) bool {
		if p[i][0] != p[j][0] {
			return p[i][0] < p[j][0]
		}
		return p[i][1] < p[j][1]
	})
}

// ProgressSummary condenses a best-fitness history.
type ProgressSummary struct {
	Start       float64 `json:"start"`
	Mid         float64 `json:"mid"`
	Final       float64 `json:"final"`
	GainPercent float64 `json:"gain_percent"`
}

// Progress summarizes history by its first, middle (index len/2) and last
// values. GainPercent is (start-final)/start*100, 0 when start is not positive.
// An empty history yields the zero summary.
func Progress(history []float64) ProgressSummary {
	if len(history) == 0 {
		return ProgressSummary{}
	}
	p := ProgressSummary{
		Start: history[0],
		Mid:   history[len(history)/2],
		Final: history[len(history)-1],
	}
	if p.Start > 0 {
		p.GainPercent = (p.Start - p.Final) / p.Start * 100
	}
	return p
}
