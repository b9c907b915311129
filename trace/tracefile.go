// Package trace records every executed instruction to a compact file for
// offline replay: a fixed header followed by a snappy-compressed stream of
// per-step records.
package trace

import (
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const Magic = "CKBT"

type Header struct {
	// "CKBT"
	Magic string `struc:"[4]byte"`
	// file format version
	Version uint32
	// instruction set, right-null-padded
	Arch string `struc:"[16]byte"`
}

// Record is one executed instruction: the PC it was fetched from and the
// machine's cycle counter after it retired.
type Record struct {
	PC     uint64
	Cycles uint64
}

type Writer struct {
	w  io.Writer
	zw *snappy.Writer
}

func NewWriter(w io.Writer, arch string) (*Writer, error) {
	header := &Header{Magic: Magic, Version: 1, Arch: arch}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack trace header")
	}
	return &Writer{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

// Pack appends one record per executed instruction.
func (t *Writer) Pack(rec *Record) error {
	return struc.Pack(t.zw, rec)
}

func (t *Writer) Close() error {
	return t.zw.Close()
}

type Reader struct {
	zr     *snappy.Reader
	Header Header
}

func NewReader(r io.Reader) (*Reader, error) {
	t := &Reader{}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack trace header")
	}
	if t.Header.Magic != Magic {
		return nil, errors.New("invalid trace file magic")
	}
	t.Header.Arch = strings.TrimRight(t.Header.Arch, "\x00")
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns the next record, or io.EOF at the end of the stream.
func (t *Reader) Next() (*Record, error) {
	rec := &Record{}
	if err := struc.Unpack(t.zr, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
