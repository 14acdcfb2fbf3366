package engine

import (
	"math"
	"math/cmplx"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// word is a single-qudit gate sequence in application order.
type word []string

var gateSU2 = map[string]su2{
	"h":   {complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0)},
	"t":   {1, 0, 0, cmplx.Exp(complex(0, math.Pi/4))},
	"tdg": {1, 0, 0, cmplx.Exp(complex(0, -math.Pi/4))},
	"s":   {1, 0, 0, 1i},
	"sdg": {1, 0, 0, -1i},
	"z":   {1, 0, 0, -1},
	"x":   {0, 1, 1, 0},
	"y":   {0, -1i, 1i, 0},
}

var inverseGate = map[string]string{
	"h": "h", "x": "x", "y": "y", "z": "z",
	"t": "tdg", "tdg": "t", "s": "sdg", "sdg": "s",
}

func (w word) matrix() su2 {
	m := identity2
	for _, g := range w {
		m = gateSU2[g].mul(m)
	}
	return m
}

func (w word) dagger() word {
	out := make(word, len(w))
	for i, g := range w {
		out[len(w)-1-i] = inverseGate[g]
	}
	return out
}

func concatWords(parts ...word) word {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make(word, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// phaseKey quantizes m after removing its global phase. The pivot entry is
// chosen by magnitude so that equal matrices pick the same one.
func phaseKey(m su2, scale float64) [8]int64 {
	pivot := m[0]
	if cmplx.Abs(pivot) < 0.6 {
		pivot = m[1]
	}
	phase := pivot / complex(cmplx.Abs(pivot), 0)
	var key [8]int64
	for i, v := range m {
		v /= phase
		key[2*i] = int64(math.Round(real(v) * scale))
		key[2*i+1] = int64(math.Round(imag(v) * scale))
	}
	return key
}

type netEntry struct {
	word word
	m    su2
}

// baseNet is every distinct h/t/tdg product up to a fixed word length,
// each stored with its shortest word.
type baseNet struct {
	entries []netEntry
}

const (
	baseNetWordLength = 20
	baseNetMaxEntries = 60000
)

var (
	sharedNetOnce sync.Once
	sharedNet     *baseNet
)

func defaultNet() *baseNet {
	sharedNetOnce.Do(func() {
		sharedNet = buildNet(baseNetWordLength, baseNetMaxEntries)
	})
	return sharedNet
}

func buildNet(maxLength, maxEntries int) *baseNet {
	generators := []string{"h", "t", "tdg"}
	root := netEntry{word: word{}, m: identity2}
	net := &baseNet{entries: []netEntry{root}}
	seen := map[[8]int64]bool{phaseKey(root.m, 1e7): true}

	frontier := []netEntry{root}
	for length := 0; length < maxLength && len(frontier) > 0; length++ {
		var next []netEntry
		for _, e := range frontier {
			for _, g := range generators {
				m := gateSU2[g].mul(e.m)
				key := phaseKey(m, 1e7)
				if seen[key] {
					continue
				}
				seen[key] = true
				w := make(word, len(e.word)+1)
				copy(w, e.word)
				w[len(e.word)] = g
				entry := netEntry{word: w, m: m}
				next = append(next, entry)
				net.entries = append(net.entries, entry)
				if len(net.entries) >= maxEntries {
					return net
				}
			}
		}
		frontier = next
	}
	return net
}

func (n *baseNet) nearest(u su2) netEntry {
	best := n.entries[0]
	bestDist := math.Inf(1)
	for _, e := range n.entries {
		d := e.m.distance(u)
		if d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

type approxKey struct {
	entries [8]int64
	depth   int
}

// approximator turns single-qudit unitaries into Clifford+T words. It is
// safe for concurrent use.
type approximator struct {
	net   *baseNet
	cache *lru.Cache[approxKey, word]
}

func newApproximator(cacheSize int) (*approximator, error) {
	cache, err := lru.New[approxKey, word](cacheSize)
	if err != nil {
		return nil, err
	}
	return &approximator{net: defaultNet(), cache: cache}, nil
}

// approximate returns a word whose product is within the Solovay-Kitaev
// bound of u at the given recursion depth. Results are cached per quantized
// matrix and depth.
func (a *approximator) approximate(u su2, depth int) word {
	key := approxKey{entries: phaseKey(u, 1e10), depth: depth}
	if w, ok := a.cache.Get(key); ok {
		return w
	}
	w := a.solovayKitaev(u.special(), depth).word
	a.cache.Add(key, w)
	return w
}

// phasePowers maps diagonal Clifford+T gates to their power of T.
var phasePowers = map[string]int{"t": 1, "s": 2, "z": 4, "sdg": 6, "tdg": 7}

// phaseWords lists, per power of T, equivalent words from shortest to longest.
var phaseWords = [8][]word{
	{{}},
	{{"t"}},
	{{"s"}, {"t", "t"}},
	{{"s", "t"}, {"t", "t", "t"}},
	{{"z"}, {"s", "s"}, {"t", "t", "t", "t"}},
	{{"z", "t"}, {"sdg", "tdg"}, {"tdg", "tdg", "tdg"}},
	{{"sdg"}, {"tdg", "tdg"}},
	{{"tdg"}},
}

func emitPhase(out word, power int, allowed map[string]bool) word {
	for _, candidate := range phaseWords[power] {
		ok := true
		for _, g := range candidate {
			if !allowed[g] {
				ok = false
				break
			}
		}
		if ok {
			return append(out, candidate...)
		}
	}
	return out
}

// simplify cancels adjacent h·h, x·x and y·y and folds each run of diagonal
// gates into the shortest equivalent over the allowed gates.
func simplify(w word, allowed map[string]bool) word {
	type item struct {
		gate  string
		power int // for phase runs; gate is empty
	}
	var stack []item

	for _, g := range w {
		if p, ok := phasePowers[g]; ok {
			if n := len(stack); n > 0 && stack[n-1].gate == "" {
				stack[n-1].power = (stack[n-1].power + p) % 8
				if stack[n-1].power == 0 {
					stack = stack[:n-1]
				}
				continue
			}
			stack = append(stack, item{power: p})
			continue
		}
		if n := len(stack); n > 0 && stack[n-1].gate == g && inverseGate[g] == g {
			stack = stack[:n-1]
			continue
		}
		stack = append(stack, item{gate: g})
	}

	out := make(word, 0, len(w))
	for _, it := range stack {
		if it.gate == "" {
			out = emitPhase(out, it.power, allowed)
			continue
		}
		out = append(out, it.gate)
	}
	return out
}
