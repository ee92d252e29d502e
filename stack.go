package geoz

// stackOp moves selected tuple elements to and from the workspace stack.
// push stores v_1..v_4 in that order; pop restores them in reverse, so a
// matching push/pop pair leaves the tuple unchanged. Each is the other's
// inverse.
type stackOp struct {
	name Name
	sel  []int
	push bool
}

func newPush(p *Parameters) (Operator, error) { return newStackOp(p, true) }

func newPop(p *Parameters) (Operator, error) { return newStackOp(p, false) }

func newStackOp(p *Parameters, push bool) (Operator, error) {
	op := &stackOp{name: p.Operator(), push: push}
	for i, key := range []string{"v_1", "v_2", "v_3", "v_4"} {
		on, err := p.Flag(key)
		if err != nil {
			return nil, err
		}
		if on {
			op.sel = append(op.sel, i)
		}
	}
	if len(op.sel) == 0 {
		return nil, p.fail("v_1", "", ErrMissingParameter)
	}
	return op, nil
}

func (s *stackOp) Name() Name { return s.name }

func (s *stackOp) Forward(ws *Workspace) error {
	if s.push {
		return s.store(ws)
	}
	return s.restore(ws)
}

func (s *stackOp) Inverse(ws *Workspace) error {
	if s.push {
		return s.restore(ws)
	}
	return s.store(ws)
}

func (s *stackOp) store(ws *Workspace) error {
	for _, i := range s.sel {
		if err := ws.Push(ws.Coord[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *stackOp) restore(ws *Workspace) error {
	for k := len(s.sel) - 1; k >= 0; k-- {
		v, err := ws.Pop()
		if err != nil {
			return err
		}
		ws.Coord[s.sel[k]] = v
	}
	return nil
}
