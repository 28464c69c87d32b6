package ml

import (
	"errors"
	"fmt"
)

// MinMaxScaler holds the per-feature bounds learned at fit time, in fit order.
type MinMaxScaler struct {
	FeatureNames []string  `json:"feature_names_in"`
	DataMin      []float64 `json:"data_min"`
	DataMax      []float64 `json:"data_max"`
}

func (s *MinMaxScaler) Check() error {
	if len(s.FeatureNames) == 0 {
		return errors.New("scaler has no feature names")
	}
	if len(s.DataMin) != len(s.FeatureNames) || len(s.DataMax) != len(s.FeatureNames) {
		return fmt.Errorf("scaler bounds length mismatch: names=%d min=%d max=%d",
			len(s.FeatureNames), len(s.DataMin), len(s.DataMax))
	}
	for i := range s.DataMin {
		if s.DataMin[i] > s.DataMax[i] {
			return fmt.Errorf("scaler feature %s: min %v greater than max %v", s.FeatureNames[i], s.DataMin[i], s.DataMax[i])
		}
	}
	return nil
}

func (s *MinMaxScaler) Transform(values []float64) ([]float64, error) {
	return NormalizeVector(values, s.DataMin, s.DataMax)
}

// NormalizeFeature rescales value to [0,1] for values inside [min,max]. A constant feature
// keeps a unit scale, so the result is value-min.
func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return value - min
	}
	return (value - min) / (max - min)
}

func NormalizeVector(values []float64, mins []float64, maxs []float64) ([]float64, error) {
	if len(values) != len(mins) || len(values) != len(maxs) {
		return nil, errors.New("values/mins/maxs length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = NormalizeFeature(values[i], mins[i], maxs[i])
	}
	return result, nil
}
