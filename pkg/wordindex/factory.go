package wordindex

import "fmt"

// New builds the Index named by kind, one of the §6 word_index config
// values: basic, counting, optimizing_basic, optimizing_counting, hashing.
func New(kind string) (Index, error) {
	switch kind {
	case "basic":
		return NewBasic(), nil
	case "counting":
		return NewCounting(), nil
	case "optimizing_basic":
		return NewOptimizing(NewBasic()), nil
	case "optimizing_counting":
		return NewOptimizing(NewCounting()), nil
	case "hashing":
		return NewHashing(), nil
	default:
		return nil, fmt.Errorf("wordindex: unknown word_index %q", kind)
	}
}
