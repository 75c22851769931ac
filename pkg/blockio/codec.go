package blockio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameSize is the fixed frame size used by the wire format: every record
// occupies one metadata frame followed by ceil(Size/FrameSize) data frames,
// each exactly FrameSize bytes, big-endian, zero-padded.
const FrameSize = 4096

// Metadata frame field offsets, in bytes.
const (
	offBIFlags     = 0
	offBIRW        = 8
	offWriteSector = 16
	offSize        = 24
	offTimeNS      = 32
	// Bytes [40, FrameSize) are reserved: always written as zero, not checked
	// when decoding.
)

// Encode writes dw to w as one FrameSize metadata frame followed by
// ceil(Size/FrameSize) FrameSize data frames (zero emitted when Size == 0).
// All integers are big-endian. The final data frame is zero-padded past Size.
//
// Encode wraps [ErrIO] around any short write.
func (dw DiskWrite) Encode(w io.Writer) error {
	var meta [FrameSize]byte

	binary.BigEndian.PutUint64(meta[offBIFlags:], dw.BIFlags)
	binary.BigEndian.PutUint64(meta[offBIRW:], dw.BIRW)
	binary.BigEndian.PutUint64(meta[offWriteSector:], dw.WriteSector)
	binary.BigEndian.PutUint64(meta[offSize:], dw.Size)
	binary.BigEndian.PutUint64(meta[offTimeNS:], dw.TimeNS)

	if _, err := w.Write(meta[:]); err != nil {
		return fmt.Errorf("%w: writing metadata frame: %w", ErrIO, err)
	}

	remaining := dw.Data

	for written := uint64(0); written < dw.Size; written += FrameSize {
		var frame [FrameSize]byte

		n := copy(frame[:], remaining)
		remaining = remaining[n:]

		if _, err := w.Write(frame[:]); err != nil {
			return fmt.Errorf("%w: writing data frame: %w", ErrIO, err)
		}
	}

	return nil
}

// DecodeDiskWrite reads one record from r, the inverse of [DiskWrite.Encode].
//
// It wraps [ErrFormat] around a read that ends mid-frame (stream truncated),
// and [ErrIO] around any other read failure.
func DecodeDiskWrite(r io.Reader) (DiskWrite, error) {
	var meta [FrameSize]byte

	if _, err := io.ReadFull(r, meta[:]); err != nil {
		return DiskWrite{}, wrapReadErr("reading metadata frame", err)
	}

	dw := DiskWrite{
		BIFlags:     binary.BigEndian.Uint64(meta[offBIFlags:]),
		BIRW:        binary.BigEndian.Uint64(meta[offBIRW:]),
		WriteSector: binary.BigEndian.Uint64(meta[offWriteSector:]),
		Size:        binary.BigEndian.Uint64(meta[offSize:]),
		TimeNS:      binary.BigEndian.Uint64(meta[offTimeNS:]),
	}

	if dw.Size == 0 {
		return dw, nil
	}

	data := make([]byte, dw.Size)
	remaining := data

	numDataFrames := (dw.Size + FrameSize - 1) / FrameSize

	for i := uint64(0); i < numDataFrames; i++ {
		var frame [FrameSize]byte

		if _, err := io.ReadFull(r, frame[:]); err != nil {
			return DiskWrite{}, wrapReadErr("reading data frame", err)
		}

		n := copy(remaining, frame[:])
		remaining = remaining[n:]
	}

	dw.Data = data

	return dw, nil
}

func wrapReadErr(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: %w", ErrFormat, op, err)
	}

	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
