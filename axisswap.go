package geoz

import (
	"strconv"
	"strings"
)

// axisswap permutes the elements of a tuple and optionally flips their
// signs. order=2,1 swaps the horizontal axes, order=1,-2 flips the
// second one. Elements not named keep their place.
type axisswap struct {
	name Name
	src  [4]int
	sign [4]float64
}

func newAxisswap(p *Parameters) (Operator, error) {
	raw, err := p.RequiredText("order")
	if err != nil {
		return nil, err
	}
	parts := strings.Split(raw, ",")
	if len(parts) < 2 || len(parts) > 4 {
		return nil, p.fail("order", raw, ErrInvalidParameter)
	}

	a := &axisswap{name: p.Operator()}
	for i := range a.src {
		a.src[i] = i
		a.sign[i] = 1
	}
	var seen [4]bool
	for i, s := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n == 0 || n > 4 || n < -4 {
			return nil, p.fail("order", raw, ErrInvalidParameter)
		}
		idx := n
		if idx < 0 {
			idx = -idx
			a.sign[i] = -1
		}
		idx--
		if seen[idx] {
			return nil, p.fail("order", raw, ErrInvalidParameter)
		}
		seen[idx] = true
		a.src[i] = idx
	}
	// A partial order must still be a permutation of the leading axes.
	for i := range parts {
		if !seen[i] {
			return nil, p.fail("order", raw, ErrInvalidParameter)
		}
	}
	return a, nil
}

func (a *axisswap) Name() Name { return a.name }

func (a *axisswap) Forward(ws *Workspace) error {
	in := ws.Coord
	for i := range ws.Coord {
		ws.Coord[i] = a.sign[i] * in[a.src[i]]
	}
	return nil
}

func (a *axisswap) Inverse(ws *Workspace) error {
	in := ws.Coord
	for i := range ws.Coord {
		ws.Coord[a.src[i]] = a.sign[i] * in[i]
	}
	return nil
}
