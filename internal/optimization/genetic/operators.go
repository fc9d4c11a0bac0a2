package genetic

import (
	"math/rand"
)

// tournament samples k individuals uniformly with replacement and returns
// the index of the fittest; the first drawn wins ties.
func tournament(fitness []float64, k int, rng *rand.Rand) int {
	best := rng.Intn(len(fitness))
	for i := 1; i < k; i++ {
		if c := rng.Intn(len(fitness)); fitness[c] < fitness[best] {
			best = c
		}
	}
	return best
}

// orderCrossover (OX) copies p1[a..b] into the child and fills the remaining
// positions, starting after b and wrapping, with p2's cities in p2's order.
func orderCrossover(p1, p2 []int, rng *rand.Rand) []int {
	n := len(p1)
	a, b := rng.Intn(n), rng.Intn(n)
	if a > b {
		a, b = b, a
	}

	child := make([]int, n)
	for i := range child {
		child[i] = -1
	}
	used := make([]bool, n)
	for i := a; i <= b; i++ {
		child[i] = p1[i]
		used[p1[i]] = true
	}

	pos := (b + 1) % n
	for _, city := range p2 {
		if used[city] {
			continue
		}
		for child[pos] != -1 {
			pos = (pos + 1) % n
		}
		child[pos] = city
	}
	return child
}

// swapMutation exchanges two random positions in place.
func swapMutation(t []int, rng *rand.Rand) {
	i, j := rng.Intn(len(t)), rng.Intn(len(t))
	if i != j {
		t[i], t[j] = t[j], t[i]
	}
}

// inversionMutation reverses t[i..j] in place for two random positions.
func inversionMutation(t []int, rng *rand.Rand) {
	i, j := rng.Intn(len(t)), rng.Intn(len(t))
	if i > j {
		i, j = j, i
	}
	for ; i < j; i, j = i+1, j-1 {
		t[i], t[j] = t[j], t[i]
	}
}

func mutator(op MutationOp) func([]int, *rand.Rand) {
	if op == MutationSwap {
		return swapMutation
	}
	return inversionMutation
}
