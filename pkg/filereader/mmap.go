package filereader

import (
	"bytes"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapReader maps the whole file read-only and locates line boundaries by
// scanning for '\n'; NextLine returns a slice pointing directly into the
// mapping, never copying. Grounded on kho-fslm's OpenMappedFile/MappedFile
// (other_examples), which maps a model file with syscall.Mmap and hands
// out pointers into it; mmap-go wraps the same PROT_READ/MAP_SHARED
// mapping portably instead of calling syscall.Mmap directly.
type MmapReader struct {
	file *os.File
	data mmap.MMap
	pos  int
}

// OpenMmap opens path and maps it read-only.
func OpenMmap(path string) (*MmapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MmapReader{file: f, data: data}, nil
}

func (r *MmapReader) NextLine() ([]byte, bool) {
	if r.pos >= len(r.data) {
		return nil, false
	}
	rest := []byte(r.data[r.pos:])
	nl := bytes.IndexByte(rest, '\n')
	var line []byte
	if nl < 0 {
		line = rest
		r.pos = len(r.data)
	} else {
		line = rest[:nl]
		r.pos += nl + 1
	}
	line = stripCR(line)
	return line, true
}

func (r *MmapReader) FirstTab(b []byte) (before, after []byte, ok bool) {
	return splitOnByte(b, '\t')
}

func (r *MmapReader) FirstSpace(b []byte) (before, after []byte, ok bool) {
	return splitOnByte(b, ' ')
}

func (r *MmapReader) Close() error {
	err1 := r.data.Unmap()
	err2 := r.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
