// Package tinycompress writes zlib streams on targets where
// compress/zlib is too large. Data is emitted as stored DEFLATE blocks,
// which any zlib reader accepts.
package tinycompress

import (
	"hash"
	"hash/adler32"
	"io"
)

// maxStoredBlock is the largest payload of one stored DEFLATE block.
const maxStoredBlock = 0xFFFF

// Writer buffers everything written to it and emits the zlib stream on
// Close.
type Writer struct {
	output   io.Writer
	inputBuf []byte
	adler    hash.Hash32
	closed   bool
}

// NewWriter creates a new zlib Writer compatible with io.WriteCloser.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output:   w,
		inputBuf: make([]byte, 0, 1024),
		adler:    adler32.New(),
	}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.inputBuf = append(w.inputBuf, p...)
	w.adler.Write(p)
	return len(p), nil
}

// Close writes the compressed stream. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// zlib header: deflate, 32K window, default level
	if _, err := w.output.Write([]byte{0x78, 0x9C}); err != nil {
		return err
	}

	data := w.inputBuf
	for {
		n := len(data)
		final := byte(1)
		if n > maxStoredBlock {
			n = maxStoredBlock
			final = 0
		}
		length := uint16(n)
		nlength := ^length
		hdr := []byte{final, byte(length), byte(length >> 8), byte(nlength), byte(nlength >> 8)}
		if _, err := w.output.Write(hdr); err != nil {
			return err
		}
		if _, err := w.output.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if final == 1 {
			break
		}
	}

	sum := w.adler.Sum32()
	_, err := w.output.Write([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
	return err
}

// Compress returns data as a zlib stream.
func Compress(data []byte) []byte {
	var buf sliceWriter
	buf.b = make([]byte, 0, len(data)+11+5*(len(data)/maxStoredBlock))
	w := NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.b
}

type sliceWriter struct {
	b []byte
}

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.b = append(s.b, p...)
	return len(p), nil
}
