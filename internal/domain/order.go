package domain

import (
	"math"
	"sort"
)

// ClusterOrder derives a similarity-based display ordering from a
// correlation matrix: hierarchical average-linkage clustering on the
// distance 1 - corr (symmetrized, zero diagonal, undefined coefficients
// treated as maximally distant), returning the leaf order of the merge
// tree. With two or fewer labels the input order is returned unchanged.
func ClusterOrder(m Matrix) []string {
	n := len(m.Labels)
	if n <= 2 {
		return append([]string(nil), m.Labels...)
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i == j {
				continue
			}
			a, b := m.Coef[i][j], m.Coef[j][i]
			var d float64
			switch {
			case !math.IsNaN(a) && !math.IsNaN(b):
				d = 1 - (a+b)/2
			case !math.IsNaN(a):
				d = 1 - a
			case !math.IsNaN(b):
				d = 1 - b
			default:
				d = 2 // maximum distance on the 1-corr scale
			}
			dist[i][j] = d
		}
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	linkage := func(a, b []int) float64 {
		var sum float64
		for _, i := range a {
			for _, j := range b {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a)*len(b))
	}

	for len(clusters) > 1 {
		bi, bj := 0, 1
		best := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := linkage(clusters[i], clusters[j]); d < best {
					best, bi, bj = d, i, j
				}
			}
		}
		merged := append(append([]int(nil), clusters[bi]...), clusters[bj]...)
		next := make([][]int, 0, len(clusters)-1)
		for k, c := range clusters {
			if k == bi || k == bj {
				continue
			}
			next = append(next, c)
		}
		clusters = append(next, merged)
	}

	out := make([]string, 0, n)
	for _, i := range clusters[0] {
		out = append(out, m.Labels[i])
	}
	return out
}

// LexicalOrder returns the labels sorted lexicographically.
func LexicalOrder(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.Strings(out)
	return out
}

// MergeOrder appends to primary any extra labels not already present,
// preserving first-seen order and deduplicating. Used to extend the static
// display order with labels that only appear in rolling frames, so axes
// never silently reorder between the static and animated views.
func MergeOrder(primary, extra []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(extra))
	out := make([]string, 0, len(primary)+len(extra))
	for _, l := range primary {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	for _, l := range extra {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
