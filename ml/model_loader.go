package ml

import (
	"fmt"
)

const ModelTypeDecisionTree = "decision_tree"

func LoadModel(modelType string, payload []byte) (Classifier, error) {
	switch modelType {
	case ModelTypeDecisionTree, "":
		model := &DecisionTree{}
		if err := model.Unmarshal(payload); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
