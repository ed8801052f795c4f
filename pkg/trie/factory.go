package trie

import "fmt"

// New builds the Store named by trieType, one of the §6 trie_type config
// values: c2dm, c2dh, c2wa, w2ca, w2ch, g2dm, h2dm.
func New(trieType string, n int, useCache bool) (Store, error) {
	switch trieType {
	case "c2dm":
		return NewC2DMap(n, useCache), nil
	case "c2dh":
		return NewC2DH(n, useCache), nil
	case "c2wa":
		return NewC2WArray(n, useCache), nil
	case "w2ca":
		return NewW2CArray(n, useCache), nil
	case "w2ch":
		return NewW2CHybrid(n, useCache), nil
	case "g2dm":
		return NewG2DMap(n, useCache), nil
	case "h2dm":
		return NewH2DMap(n, useCache), nil
	default:
		return nil, fmt.Errorf("trie: unknown trie_type %q", trieType)
	}
}
