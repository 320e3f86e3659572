package modkit

import (
	"slices"
	"sync"
)

// resolveChain is one top-level Resolve call together with the nested
// resolutions its factories perform.
type resolveChain struct {
	root Token
}

type flightKey struct {
	injector *Injector
	token    string
}

type waitEdge struct {
	key  flightKey
	path []Token
}

// waitGraph tracks which chain runs each in-flight construction and which
// construction each chain is waiting on, across every Injector of a
// registry. A chain must not join a construction that is itself waiting,
// directly or through other chains, on that chain.
type waitGraph struct {
	mu      sync.Mutex
	owners  map[flightKey]*resolveChain
	waiting map[*resolveChain]waitEdge
}

func newWaitGraph() *waitGraph {
	return &waitGraph{
		owners:  make(map[flightKey]*resolveChain),
		waiting: make(map[*resolveChain]waitEdge),
	}
}

// wait records that ch, resolving path, waits for key. path ends with the
// awaited token. If joining would close a cycle, wait records nothing and
// returns the tokens of the cycle.
func (g *waitGraph) wait(ch *resolveChain, key flightKey, path []Token) []Token {
	g.mu.Lock()
	defer g.mu.Unlock()

	cycle := slices.Clone(path)
	seen := make(map[*resolveChain]bool)
	for k := key; ; {
		owner, ok := g.owners[k]
		if !ok || seen[owner] {
			break
		}
		if owner == ch {
			return cycle
		}
		seen[owner] = true

		edge, ok := g.waiting[owner]
		if !ok {
			break
		}
		cycle = append(cycle, tokensAfter(edge.path, cycle[len(cycle)-1])...)
		k = edge.key
	}

	g.waiting[ch] = waitEdge{key: key, path: path}
	return nil
}

func (g *waitGraph) done(ch *resolveChain) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.waiting, ch)
}

func (g *waitGraph) own(ch *resolveChain, key flightKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.owners[key] = ch
}

func (g *waitGraph) release(key flightKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.owners, key)
}

func tokensAfter(path []Token, token Token) []Token {
	if i := slices.Index(path, token); i >= 0 {
		return path[i+1:]
	}
	return path
}
