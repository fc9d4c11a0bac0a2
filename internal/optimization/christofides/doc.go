// Package christofides implements the Christofides 1.5-approximation for the
// metric TSP:
//
//  1. minimum spanning tree of the complete graph,
//  2. minimum-weight perfect matching on the tree's odd-degree vertices,
//  3. Eulerian circuit of tree + matching (a multigraph),
//  4. shortcut of the circuit to a Hamiltonian cycle.
//
// The matching is always minimal. While the odd set is at most
// Config.DPMatchingLimit vertices it is solved by a dynamic program over
// subsets, which costs O(2^k·k) time and O(2^k) memory for k odd vertices,
// so the limit is capped at MaxDPMatchingLimit. Larger sets use Edmonds'
// weighted blossom algorithm in O(k^3). Artifacts.MatchingMethod reports
// which one ran.
package christofides
