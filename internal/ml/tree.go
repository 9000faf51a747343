package ml

import "sort"

// node is one regression tree node. Leaves carry the boosting step value.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	value     float64
	leaf      bool
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// fitTree grows a regression tree on the gradient targets with greedy
// squared-error splits. rows indexes into X/grad so subtrees reuse the
// backing data without copying.
func fitTree(X [][]float64, grad, hess []float64, rows []int, depth, minLeaf int) *node {
	if depth <= 0 || len(rows) < 2*minLeaf {
		return leafNode(grad, hess, rows)
	}

	feature, threshold, ok := bestSplit(X, grad, rows, minLeaf)
	if !ok {
		return leafNode(grad, hess, rows)
	}

	var left, right []int
	for _, r := range rows {
		if X[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      fitTree(X, grad, hess, left, depth-1, minLeaf),
		right:     fitTree(X, grad, hess, right, depth-1, minLeaf),
	}
}

// leafNode computes the Newton step for a leaf region:
// ((K-1)/K) * sum(g) / sum(h), the standard multiclass boosting leaf value.
// The (K-1)/K factor is folded into hess by the caller.
func leafNode(grad, hess []float64, rows []int) *node {
	var g, h float64
	for _, r := range rows {
		g += grad[r]
		h += hess[r]
	}
	v := 0.0
	if h > 1e-12 {
		v = g / h
	}
	return &node{leaf: true, value: v}
}

// bestSplit scans every feature for the threshold with the largest
// squared-error reduction on the gradient targets.
func bestSplit(X [][]float64, grad []float64, rows []int, minLeaf int) (int, float64, bool) {
	n := len(rows)
	if n < 2*minLeaf {
		return 0, 0, false
	}

	var total float64
	for _, r := range rows {
		total += grad[r]
	}

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0

	numFeatures := len(X[rows[0]])
	order := make([]int, n)
	for f := 0; f < numFeatures; f++ {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool { return X[order[i]][f] < X[order[j]][f] })

		var leftSum float64
		for i := 0; i < n-1; i++ {
			leftSum += grad[order[i]]
			// candidate split between i and i+1
			if X[order[i]][f] == X[order[i+1]][f] {
				continue
			}
			leftN := i + 1
			rightN := n - leftN
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(leftN) + rightSum*rightSum/float64(rightN) - total*total/float64(n)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[order[i]][f] + X[order[i+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}
