package filereader

import (
	"bufio"
	"io"
	"os"
)

// BufferedReader is the stdio/getline-style counterpart to MmapReader: it
// reuses one growable buffer across NextLine calls instead of mapping the
// file. Used when mmap isn't available or appropriate (e.g. reading from
// a pipe rather than a regular file).
type BufferedReader struct {
	file *os.File
	r    *bufio.Reader
	buf  []byte
}

// OpenBuffered opens path for buffered line-at-a-time reading.
func OpenBuffered(path string) (*BufferedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &BufferedReader{file: f, r: bufio.NewReaderSize(f, 64*1024)}, nil
}

func (r *BufferedReader) NextLine() ([]byte, bool) {
	r.buf = r.buf[:0]
	for {
		chunk, err := r.r.ReadSlice('\n')
		r.buf = append(r.buf, chunk...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if len(r.buf) == 0 {
				return nil, false
			}
			break
		}
		return nil, false
	}
	line := r.buf
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	line = stripCR(line)
	return line, true
}

func (r *BufferedReader) FirstTab(b []byte) (before, after []byte, ok bool) {
	return splitOnByte(b, '\t')
}

func (r *BufferedReader) FirstSpace(b []byte) (before, after []byte, ok bool) {
	return splitOnByte(b, ' ')
}

func (r *BufferedReader) Close() error {
	return r.file.Close()
}
