package wordindex

import "github.com/c2h5oh/datasize"

// Stats summarizes a word index for diagnostics; the CLI does not print it.
type Stats struct {
	Words      int
	Continuous bool
	Approx     datasize.ByteSize
}

// Report builds a Stats snapshot. The byte estimate is intentionally
// rough (average token length assumed at 8 bytes plus one WordID per
// slot); it is a diagnostic, not a sizing guarantee.
func Report(idx Index) Stats {
	n := idx.Len()
	approx := datasize.ByteSize(n * (8 + 4))
	return Stats{
		Words:      n,
		Continuous: idx.IsContinuous(),
		Approx:     approx,
	}
}

func (s Stats) String() string {
	return s.Approx.String()
}
