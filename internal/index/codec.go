// ABOUTME: Binary encoding of the flat index vectors for index.bin
// ABOUTME: Layout: magic, uint32 dim, uint64 count, then count*dim little-endian float32
package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var indexMagic = [8]byte{'C', 'N', 'L', 'Y', 'I', 'D', 'X', '1'}

const (
	headerLen = 8 + 4 + 8

	// maxDim bounds the dimension accepted from a header
	maxDim = 1 << 16
)

// ErrCorruptIndex means index.bin could not be decoded
var ErrCorruptIndex = errors.New("corrupt index file")

func writeVectors(w io.Writer, f *FlatIndex) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(indexMagic[:]); err != nil {
		return err
	}

	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(f.dim))
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(f.Len()))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	var buf [4]byte
	for _, v := range f.data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readVectors decodes index.bin. size is the total byte length of the input and must
// match the header exactly, so a corrupt header cannot trigger a huge allocation.
func readVectors(r io.Reader, size int64) (*FlatIndex, error) {
	br := bufio.NewReader(r)

	var magic [8]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptIndex, err)
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, magic[:])
	}

	var hdr [12]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptIndex, err)
	}
	dim := int(binary.LittleEndian.Uint32(hdr[0:4]))
	count := binary.LittleEndian.Uint64(hdr[4:12])
	if dim > maxDim || (dim <= 0 && count > 0) {
		return nil, fmt.Errorf("%w: %d vectors with dimension %d", ErrCorruptIndex, count, dim)
	}
	if count > math.MaxInt32 {
		return nil, fmt.Errorf("%w: implausible vector count %d", ErrCorruptIndex, count)
	}
	values := int64(count) * int64(dim)
	if want := headerLen + values*4; want != size {
		return nil, fmt.Errorf("%w: header describes %d bytes, file has %d", ErrCorruptIndex, want, size)
	}

	f := NewFlatIndex(dim)
	f.data = make([]float32, values)
	var buf [4]byte
	for i := range f.data {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: truncated at value %d: %v", ErrCorruptIndex, i, err)
		}
		f.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
	}
	return f, nil
}
