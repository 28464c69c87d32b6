package ml

import (
	"errors"
	"fmt"
	"sort"
)

// LabelEncoder maps a closed, sorted vocabulary to the codes 0..len(Classes)-1.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	codes map[string]int
}

func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("encoder has no classes")
	}
	if !sort.StringsAreSorted(classes) {
		return nil, fmt.Errorf("encoder classes are not sorted: %v", classes)
	}
	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, dup := codes[c]; dup {
			return nil, fmt.Errorf("encoder class %q appears twice", c)
		}
		codes[c] = i
	}
	return &LabelEncoder{Classes: append([]string(nil), classes...), codes: codes}, nil
}

func (e *LabelEncoder) Encode(value string) (int, bool) {
	code, ok := e.codes[value]
	return code, ok
}

func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("%w: code %d, known range [0,%d]", ErrLabelOutOfRange, code, len(e.Classes)-1)
	}
	return e.Classes[code], nil
}

func (e *LabelEncoder) Len() int {
	return len(e.Classes)
}

func (e *LabelEncoder) Contains(value string) bool {
	_, ok := e.codes[value]
	return ok
}
