// Package optimizer names the peephole rewrite pass as its own
// caller-facing entry point, independent of the Graph method that
// implements it. The rewrite itself lives on Graph because it needs
// direct access to Tensor/Operator linkage maintained only by the
// owning Graph; this package is the stable place to reach for it, the
// way database/sql.Open is the stable entry point over a driver that
// does the real work.
package optimizer

import "github.com/spacemaninhust/TinyInfiniTensor/core/graph"

// Run applies the peephole rewrite rules to g in one sweep of
// Graph.Optimize, returning the total number of rewrites. Positions
// already passed are not revisited.
func Run(g *graph.Graph) int {
	return g.Optimize()
}
