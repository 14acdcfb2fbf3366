package engine

type approximation struct {
	word word
	m    su2
}

// solovayKitaev approximates u by recursively correcting the previous level's
// residual with a balanced group commutator. A level that fails to improve
// on its predecessor returns the predecessor.
func (a *approximator) solovayKitaev(u su2, depth int) approximation {
	if depth <= 0 {
		e := a.net.nearest(u)
		return approximation{word: e.word, m: e.m}
	}

	prev := a.solovayKitaev(u, depth-1)
	v, w := groupCommutator(u.mul(prev.m.dagger()))
	va := a.solovayKitaev(v, depth-1)
	wa := a.solovayKitaev(w, depth-1)

	m := va.m.mul(wa.m).mul(va.m.dagger()).mul(wa.m.dagger()).mul(prev.m)
	if m.distance(u) >= prev.m.distance(u) {
		return prev
	}
	return approximation{
		word: concatWords(prev.word, wa.word.dagger(), va.word.dagger(), wa.word, va.word),
		m:    m,
	}
}
