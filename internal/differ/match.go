package differ

import (
	"sort"
	"strings"

	"browserlens/internal/statetree"
)

// Matching is the result of matching two trees' nodes: for every new node
// matched to an old node, NewToOld records the pair. Unmatched new nodes
// are additions; unmatched old nodes (not present as a key's value) are
// removals.
type Matching struct {
	NewToOld map[*statetree.Node]*statetree.Node
}

const maxFuzzyBucket = 16

// Match runs the two-pass matcher. Hidden nodes are excluded
// from both trees before matching, per the differ's invisible-node rule.
func Match(old, new *statetree.StateTree) Matching {
	oldFlat := old.Flatten()
	newFlat := new.Flatten()

	m := Matching{NewToOld: make(map[*statetree.Node]*statetree.Node)}

	oldMatched := make(map[*statetree.Node]bool)
	newMatched := make(map[*statetree.Node]bool)

	passAAnchor(oldFlat, newFlat, m, oldMatched, newMatched)
	passBFuzzy(oldFlat, newFlat, m, oldMatched, newMatched)

	return m
}

// passAAnchor matches nodes sharing an exact identity tuple (role,
// normalized name, parent role, level). Candidates are queued in document
// order per identity bucket, so ties are broken by sibling position.
func passAAnchor(oldFlat, newFlat []statetree.Flat, m Matching, oldMatched, newMatched map[*statetree.Node]bool) {
	buckets := make(map[statetree.Identity][]*statetree.Node)
	for _, f := range oldFlat {
		id := statetree.NodeIdentity(f.Node, f.Parent)
		buckets[id] = append(buckets[id], f.Node)
	}

	for _, f := range newFlat {
		id := statetree.NodeIdentity(f.Node, f.Parent)
		queue := buckets[id]
		if len(queue) == 0 {
			continue
		}
		candidate := queue[0]
		buckets[id] = queue[1:]
		m.NewToOld[f.Node] = candidate
		oldMatched[candidate] = true
		newMatched[f.Node] = true
	}
}

// passBFuzzy handles everything Pass A left unmatched, using the cost
// function below. Candidates are bucketed by role (the dominant
// term in the cost function) to keep the bipartite problem small; a
// dedicated bucket by normalized name also catches the "role differs but
// name agrees" reparenting-across-semantics case.
func passBFuzzy(oldFlat, newFlat []statetree.Flat, m Matching, oldMatched, newMatched map[*statetree.Node]bool) {
	var remOld, remNew []*statetree.Node
	for _, f := range oldFlat {
		if !oldMatched[f.Node] {
			remOld = append(remOld, f.Node)
		}
	}
	for _, f := range newFlat {
		if !newMatched[f.Node] {
			remNew = append(remNew, f.Node)
		}
	}
	if len(remOld) == 0 || len(remNew) == 0 {
		return
	}

	buckets := bucketByRoleAndName(remOld, remNew)
	for _, b := range buckets {
		if len(b.oldNodes) == 0 || len(b.newNodes) == 0 {
			continue
		}
		pairs := matchBucket(b.oldNodes, b.newNodes)
		for _, p := range pairs {
			if oldMatched[p.old] || newMatched[p.new] {
				continue
			}
			m.NewToOld[p.new] = p.old
			oldMatched[p.old] = true
			newMatched[p.new] = true
		}
	}
}

type bucket struct {
	oldNodes []*statetree.Node
	newNodes []*statetree.Node
}

// bucketByRoleAndName groups candidates so the later cost computation only
// ever compares nodes that could plausibly pair (same role, or same
// normalized name across roles for the rare cross-semantic reparent case).
func bucketByRoleAndName(remOld, remNew []*statetree.Node) []bucket {
	byRole := make(map[string]*bucket)
	get := func(key string) *bucket {
		b, ok := byRole[key]
		if !ok {
			b = &bucket{}
			byRole[key] = b
		}
		return b
	}
	for _, n := range remOld {
		b := get("role:" + n.Role)
		b.oldNodes = append(b.oldNodes, n)
		if n.Name != "" {
			nb := get("name:" + n.Name)
			nb.oldNodes = append(nb.oldNodes, n)
		}
	}
	for _, n := range remNew {
		b := get("role:" + n.Role)
		b.newNodes = append(b.newNodes, n)
		if n.Name != "" {
			nb := get("name:" + n.Name)
			nb.newNodes = append(nb.newNodes, n)
		}
	}
	keys := make([]string, 0, len(byRole))
	for k := range byRole {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]bucket, 0, len(byRole))
	for _, k := range keys {
		out = append(out, *byRole[k])
	}
	return out
}

type pair struct {
	old, new *statetree.Node
}

// matchBucket solves buckets small enough (≤16 per side) exactly with
// hungarianMatch; larger buckets fall back to greedy assignment by
// ascending cost.
func matchBucket(oldNodes, newNodes []*statetree.Node) []pair {
	if len(oldNodes) <= maxFuzzyBucket && len(newNodes) <= maxFuzzyBucket {
		return hungarianMatch(oldNodes, newNodes)
	}
	return greedyMatch(oldNodes, newNodes)
}

// scored is a candidate pair awaiting greedy assignment, ordered by cost.
type scored struct {
	old, new *statetree.Node
	cost     int
}

func greedyMatch(oldNodes, newNodes []*statetree.Node) []pair {
	var candidates []scored
	for _, o := range oldNodes {
		for _, n := range newNodes {
			c := cost(o, n)
			if c < rejectCost {
				candidates = append(candidates, scored{o, n, c})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].cost < candidates[j].cost })
	usedOld := map[*statetree.Node]bool{}
	usedNew := map[*statetree.Node]bool{}
	var out []pair
	for _, c := range candidates {
		if usedOld[c.old] || usedNew[c.new] {
			continue
		}
		usedOld[c.old] = true
		usedNew[c.new] = true
		out = append(out, pair{c.old, c.new})
	}
	return out
}

const rejectCost = 3

// cost scores how well an old/new node pair line up for fuzzy matching.
func cost(o, n *statetree.Node) int {
	base := -1
	switch {
	case o.Role == n.Role && o.Name == n.Name:
		base = 0
	case o.Role == n.Role && (editDistance(o.Name, n.Name) <= 2 || isPrefix(o.Name, n.Name)):
		base = 1
	case o.Role == n.Role:
		base = 2
	case o.Role != n.Role && o.Name == n.Name && o.Name != "":
		base = 2
	default:
		return rejectCost + 100
	}
	if o.Level != n.Level {
		base++
	}
	return base
}

func isPrefix(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// editDistance is a standard Levenshtein distance over runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}
	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[m]
}
