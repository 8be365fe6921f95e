package hotspots

import (
	"context"
	"math"
	"sync"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: crowd density DESC, then bin key ASC (deterministic). In-order
// traversal produces the hotspot list from worst to best.

// densityScale controls fixed-point scaling from float64. Densities are
// small numbers (runners per metre), so twelve decimal places is plenty.
const densityScale = 1_000_000_000_000

type densityFP int64

func toFixedPoint(x float64) densityFP {
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return densityFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return densityFP(math.MinInt64)
	}
	scaled := x * densityScale
	if scaled > float64(math.MaxInt64) {
		return densityFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return densityFP(math.MinInt64)
	}
	return densityFP(math.Round(scaled))
}

// treap node
type node struct {
	key     string
	density densityFP
	prio    uint64
	left    *node
	right   *node
	size    int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aDensity, aKey) ranks before (bDensity, bKey),
// denser bins first.
func less(aDensity densityFP, aKey string, bDensity densityFP, bKey string) bool {
	if aDensity != bDensity {
		return aDensity > bDensity
	}
	return aKey < bKey
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// densityToPriority keeps denser bins near the treap root.
func densityToPriority(d densityFP) uint64 {
	const offset = uint64(1) << 63
	return uint64(d) + offset
}

func insert(n *node, key string, density densityFP) *node {
	if n == nil {
		return &node{key: key, density: density, prio: densityToPriority(density), size: 1}
	}
	if less(density, key, n.density, n.key) {
		n.left = insert(n.left, key, density)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, density)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key string, density densityFP) *node {
	if n == nil {
		return nil
	}
	if density == n.density && key == n.key {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key, density)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key, density)
		}
	} else if less(density, key, n.density, n.key) {
		n.left = deleteNode(n.left, key, density)
	} else {
		n.right = deleteNode(n.right, key, density)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (densest first).
func collectTopN(n *node, limit int, records map[string]Entry, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, exists := records[n.key]; exists {
			*out = append(*out, rec)
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// TreapStore is the in-memory hotspot index. Safe for concurrent use by the
// worker pool.
type TreapStore struct {
	mu    sync.RWMutex
	root  *node
	byKey map[string]Entry
}

// NewTreapStore constructs an empty hotspot index.
func NewTreapStore() *TreapStore {
	return &TreapStore{
		byKey: make(map[string]Entry),
	}
}

// Record implements Store.Record with O(log n) expected time.
func (s *TreapStore) Record(ctx context.Context, e Entry) (bool, error) {
	_ = ctx
	if e.Key == "" || e.SegmentID == "" {
		return false, ErrBadEntry
	}

	nd := toFixedPoint(e.CrowdDensity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byKey[e.Key]; ok {
		if nd <= toFixedPoint(old.CrowdDensity) {
			return false, nil // existing observation is at least as dense
		}
		s.root = deleteNode(s.root, e.Key, toFixedPoint(old.CrowdDensity))
	}
	s.byKey[e.Key] = e
	s.root = insert(s.root, e.Key, nd)
	return true, nil
}

// TopN implements Store.TopN.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	_ = ctx
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byKey, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(ctx context.Context) int {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// assignRanksWithTies assigns ranks; bins with equal density share a rank
// and the next distinct density takes the following consecutive rank.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank
		sameCount := 1
		for j := i + 1; j < len(entries) && entries[j].CrowdDensity == entries[i].CrowdDensity; j++ {
			entries[j].Rank = currentRank
			sameCount++
		}
		currentRank++
		i += sameCount - 1
	}
}
