package geoz

// noop passes coordinates through unchanged. It is handy as a placeholder
// step and as the body of a trivial macro.
type noop struct {
	identity
	name Name
}

func newNoop(p *Parameters) (Operator, error) {
	return &noop{name: p.Operator()}, nil
}

func (n *noop) Name() Name { return n.name }
