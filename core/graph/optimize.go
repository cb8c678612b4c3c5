package graph

// Optimize runs a single linear sweep over the operator list, applying
// two peephole rules at each position until neither applies there, then
// advancing. It returns the number of rewrites applied. A rewrite
// leaves the Graph unsorted.
func (g *Graph) Optimize() int {
	rewrites := 0
	i := 0
	for i < len(g.operators) {
		op := g.operators[i]
		if g.tryCancelInverseTransposes(op) {
			rewrites++
			continue
		}
		if g.tryFuseTransposeIntoMatMul(op) {
			rewrites++
			continue
		}
		i++
	}
	if rewrites > 0 {
		g.sorted = false
	}
	return rewrites
}

// tryCancelInverseTransposes implements Rule 1: if op is a Transpose T1
// whose sole output has exactly one consumer T2, itself a Transpose, and
// T2's permutation undoes T1's, remove both and reconnect T2's consumers
// to T1's input.
func (g *Graph) tryCancelInverseTransposes(op Operator) bool {
	t1, ok := op.(*Transpose)
	if !ok {
		return false
	}
	x := t1.outputs[0]
	targets := x.Targets()
	if len(targets) != 1 {
		return false
	}
	t2, ok := targets[0].(*Transpose)
	if !ok || !t1.ComposesToIdentity(t2) {
		return false
	}

	u := t1.inputs[0]
	y := t2.outputs[0]
	consumers := y.Targets()
	predOfU := u.Source()

	for _, c := range consumers {
		c.ReplaceInput(y, u)
		u.AddTarget(c)
		c.RemovePredecessor(t2)
		if predOfU != nil {
			predOfU.AddSuccessor(c)
			c.AddPredecessor(predOfU)
		}
	}

	u.RemoveTarget(t1)
	x.RemoveTarget(t2)
	x.SetSource(nil)
	y.SetSource(nil)

	for _, pred := range t1.Predecessors() {
		pred.RemoveSuccessor(t1)
	}
	for _, succ := range t1.Successors() {
		succ.RemovePredecessor(t1)
	}
	for _, pred := range t2.Predecessors() {
		pred.RemoveSuccessor(t2)
	}
	for _, succ := range t2.Successors() {
		succ.RemovePredecessor(t2)
	}

	g.RemoveOperator(t1)
	g.RemoveOperator(t2)
	g.RemoveTensor(x)
	g.RemoveTensor(y)
	return true
}

// tryFuseTransposeIntoMatMul implements Rule 2: for each input of a
// MatMul that is produced by a single-consumer Transpose swapping only
// the last two axes, fold that Transpose into the corresponding transA
// or transB flag and remove it.
func (g *Graph) tryFuseTransposeIntoMatMul(op Operator) bool {
	m, ok := op.(*MatMul)
	if !ok {
		return false
	}

	fused := false
	for i := 0; i < len(m.inputs); i++ {
		in := m.inputs[i]
		t, ok := in.Source().(*Transpose)
		if !ok || !t.SwapsLastTwoOnly() || len(in.Targets()) != 1 {
			continue
		}

		u := t.inputs[0]
		m.ReplaceInput(in, u)
		u.AddTarget(m)
		u.RemoveTarget(t)
		in.RemoveTarget(m)
		in.SetSource(nil)

		if i == 0 {
			m.TransA = !m.TransA
		} else {
			m.TransB = !m.TransB
		}

		for _, pred := range t.Predecessors() {
			pred.RemoveSuccessor(t)
		}
		m.RemovePredecessor(t)
		if predOfU := u.Source(); predOfU != nil {
			predOfU.AddSuccessor(m)
			m.AddPredecessor(predOfU)
		}

		g.RemoveOperator(t)
		g.RemoveTensor(in)
		fused = true
	}
	return fused
}
