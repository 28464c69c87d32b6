package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type DecisionTree struct {
	nodes []TreeNode
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewDecisionTree(nodes []TreeNode) *DecisionTree {
	return &DecisionTree{nodes: append([]TreeNode(nil), nodes...)}
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		value := features[node.FeatureIdx]
		if math.IsNaN(value) {
			return 0, fmt.Errorf("%w: feature %d is NaN", ErrNonNumeric, node.FeatureIdx)
		}
		if value <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
	return 0, errors.New("invalid tree state: cycle detected")
}

func (dt *DecisionTree) Unmarshal(payload []byte) error {
	var nodes []TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return fmt.Errorf("decode decision tree: %w", err)
	}
	if len(nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	dt.nodes = nodes
	return nil
}

// Validate checks that every split reads a known feature, every child index exists and
// every leaf emits a decodable class.
func (dt *DecisionTree) Validate(numFeatures, numClasses int) error {
	if len(dt.nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if node.ClassLabel < 0 || node.ClassLabel >= numClasses {
				return fmt.Errorf("node %d: leaf label %d outside [0,%d)", i, node.ClassLabel, numClasses)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= numFeatures {
			return fmt.Errorf("node %d: feature index %d outside [0,%d)", i, node.FeatureIdx, numFeatures)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(dt.nodes) {
				return fmt.Errorf("node %d: child index %d is invalid", i, child)
			}
		}
	}
	return nil
}
