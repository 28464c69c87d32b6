package ml

// NormalizationRule maps known raw-data variants of a field to their canonical category.
// Matching is exact: values that are not listed pass through untouched.
type NormalizationRule struct {
	Field    string            `yaml:"field" json:"field"`
	Variants map[string]string `yaml:"variants" json:"variants"`
}

type Normalizer struct {
	rules map[string]map[string]string
}

func NewNormalizer(rules []NormalizationRule) *Normalizer {
	n := &Normalizer{rules: make(map[string]map[string]string, len(rules))}
	for _, rule := range rules {
		variants, ok := n.rules[rule.Field]
		if !ok {
			variants = make(map[string]string, len(rule.Variants))
			n.rules[rule.Field] = variants
		}
		for raw, canonical := range rule.Variants {
			variants[raw] = canonical
		}
	}
	return n
}

// DefaultNormalizationRules are the whitespace and tab artifacts found in the training data.
func DefaultNormalizationRules() []NormalizationRule {
	return []NormalizationRule{
		{
			Field: "Diabetes_Mellitus",
			Variants: map[string]string{
				" yes": "yes",
				"\tno":  "no",
				"\tyes": "yes",
			},
		},
		{
			Field: "Coronary_Artery_Disease",
			Variants: map[string]string{
				"\tno": "no",
			},
		},
	}
}

func (n *Normalizer) Apply(field string, value any) any {
	if n == nil {
		return value
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	if canonical, ok := n.rules[field][s]; ok {
		return canonical
	}
	return value
}
