package trie

import (
	"github.com/c2h5oh/datasize"

	"github.com/arpalm/arpalm/pkg/wordindex"
)

func datasizeOf(bytes int) datasize.ByteSize {
	if bytes < 0 {
		bytes = 0
	}
	return datasize.ByteSize(bytes)
}

// contextIDFor resolves the context id a word sequence's full prefix
// addresses, by walking it through the store's own UnigramContext +
// repeated GetContextID calls - exactly the chain a query performs. Every
// layered layout's insertion path uses this (instead of folding word ids
// into a wider integer) so the context id it mints or looks up at level L
// is always the one the level-(L-1) structure already assigned, never a
// value synthesized independently of it.
//
// This is what keeps packKey's `parent<<32|word` packing correct no
// matter how deep ws is: parent is always a context id a lower level
// already minted (and every layout mints those as a small dense counter,
// never a nested fold), so it never carries bits above bit 31 for
// packKey to shift out.
func contextIDFor(s Store, ws []wordindex.WordID) (ContextID, bool) {
	if len(ws) == 0 {
		return RootContext, true
	}
	ctx := s.UnigramContext(ws[0])
	for i := 1; i < len(ws); i++ {
		var ok bool
		ctx, ok = s.GetContextID(ws[i], ctx, i+1)
		if !ok {
			return 0, false
		}
	}
	return ctx, true
}
