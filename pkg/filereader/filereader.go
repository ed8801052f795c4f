// Package filereader provides zero-copy line and field access over an
// ARPA model file, via either a memory-mapped or a buffered reader
// (spec.md §4.6). Both strip a trailing CR before LF and never transform
// encoding.
package filereader

// Reader produces successive lines from an input source and lets the
// caller split a held line on its first tab or first space without a
// fresh allocation. A Reader is single-pass and single-threaded; it is
// discarded once the ARPA builder has consumed \end\.
type Reader interface {
	// NextLine advances to the next line and reports whether one was
	// available. The returned slice is only valid until the next call.
	NextLine() ([]byte, bool)
	// FirstTab splits b at its first tab byte, returning (before, after,
	// true), or (nil, nil, false) if there is no tab. b is typically the
	// line just returned by NextLine, or a sub-slice of it, letting a
	// caller tokenize a line in repeated passes (e.g. the ARPA builder
	// splitting prob / words / back-off on successive tabs).
	FirstTab(b []byte) (before, after []byte, ok bool)
	// FirstSpace is FirstTab's counterpart for the space byte.
	FirstSpace(b []byte) (before, after []byte, ok bool)
	// Close releases the underlying resource (unmap or file close).
	Close() error
}

// stripCR trims a single trailing '\r', matching the ARPA format's
// tolerance for CRLF line endings (§4.4: "Trailing \r is stripped").
func stripCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

// splitOnByte is shared by FirstTab/FirstSpace: find delim in b, split
// around it, or report no match.
func splitOnByte(b []byte, delim byte) (before, after []byte, ok bool) {
	for i, c := range b {
		if c == delim {
			return b[:i], b[i+1:], true
		}
	}
	return nil, nil, false
}
