package differ

import "browserlens/internal/statetree"

// hungarianMatch computes an exact minimum-cost partial assignment between
// oldNodes and newNodes, rejecting any pair at or above rejectCost, for
// buckets small enough to afford it (≤16 per side). Rows may go unmatched
// (no node is forced into a bad pairing just to fill out the assignment);
// an unmatched row is charged rejectCost, so the DP prefers any acceptable
// pair over leaving both of its nodes unmatched.
//
// This is a textbook bitmask DP over "which columns have been used by the
// rows processed so far", which is exact for inputs this small and avoids
// pulling in an external assignment-problem library for a ≤16x16 matrix.
func hungarianMatch(oldNodes, newNodes []*statetree.Node) []pair {
	n := len(oldNodes)
	m := len(newNodes)
	if n == 0 || m == 0 {
		return nil
	}

	const inf = 1 << 29
	costs := make([][]int, n)
	for i, o := range oldNodes {
		costs[i] = make([]int, m)
		for j, nn := range newNodes {
			c := cost(o, nn)
			if c >= rejectCost {
				c = inf
			}
			costs[i][j] = c
		}
	}

	size := 1 << m
	dp := make([][]int, n+1)
	choice := make([][]int, n+1) // choice[r+1][mask] = column used by row r, or -1 for skip
	for r := 0; r <= n; r++ {
		dp[r] = make([]int, size)
		choice[r] = make([]int, size)
		for j := range dp[r] {
			dp[r][j] = inf
			choice[r][j] = -2
		}
	}
	dp[0][0] = 0

	for r := 0; r < n; r++ {
		for mask := 0; mask < size; mask++ {
			if dp[r][mask] >= inf {
				continue
			}
			// Skip row r, paying rejectCost for leaving it unmatched.
			if skip := dp[r][mask] + rejectCost; skip < dp[r+1][mask] {
				dp[r+1][mask] = skip
				choice[r+1][mask] = -1
			}
			// Match row r to an unused column.
			for j := 0; j < m; j++ {
				if mask&(1<<j) != 0 {
					continue
				}
				if costs[r][j] >= inf {
					continue
				}
				next := mask | (1 << j)
				cand := dp[r][mask] + costs[r][j]
				if cand < dp[r+1][next] {
					dp[r+1][next] = cand
					choice[r+1][next] = j
				}
			}
		}
	}

	bestMask, bestCost := 0, inf
	for mask := 0; mask < size; mask++ {
		if dp[n][mask] < bestCost {
			bestCost = dp[n][mask]
			bestMask = mask
		}
	}

	var pairs []pair
	mask := bestMask
	for r := n; r > 0; r-- {
		c := choice[r][mask]
		if c == -1 {
			continue
		}
		pairs = append(pairs, pair{old: oldNodes[r-1], new: newNodes[c]})
		mask &^= 1 << c
	}
	return pairs
}
