// Package capture records touch readings to CBOR files for offline
// analysis. A file holds one Header followed by a stream of Records.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"touchsense/host/link"
	"touchsense/tsc"
)

// FormatVersion is written into every header.
const FormatVersion = 1

// Header opens a capture file.
type Header struct {
	Version   int       `cbor:"1,keyasint"`
	SessionID string    `cbor:"2,keyasint"`
	Started   time.Time `cbor:"3,keyasint"`
	Device    string    `cbor:"4,keyasint,omitempty"`
	// CR is the controller's control word when the capture started.
	CR       uint32 `cbor:"5,keyasint,omitempty"`
	Channels uint32 `cbor:"6,keyasint,omitempty"`
}

// Record is one reading.
type Record struct {
	Received time.Time `cbor:"1,keyasint"`
	Pin      uint8     `cbor:"2,keyasint"`
	Group    uint8     `cbor:"3,keyasint"`
	Count    uint16    `cbor:"4,keyasint"`
	Clock    uint32    `cbor:"5,keyasint"`
	// ErrorCode is set instead of Count for a failed acquisition.
	ErrorCode uint8 `cbor:"6,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// ErrNotCapture is returned for files that do not start with a Header.
var ErrNotCapture = errors.New("capture: missing header")

// Writer streams records to w. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	closer  io.Closer
	header  Header
	records int
	closed  bool
	now     func() time.Time
}

// NewWriter writes a header with a fresh session ID to w. cfg, when
// non-nil, records the controller configuration in the header.
func NewWriter(w io.Writer, device string, cfg *link.TouchConfig) (*Writer, error) {
	cw := &Writer{
		enc: encMode.NewEncoder(w),
		now: time.Now,
		header: Header{
			Version:   FormatVersion,
			SessionID: uuid.New().String(),
			Device:    device,
		},
	}
	cw.header.Started = cw.now()
	if cfg != nil {
		cw.header.CR = cfg.CR
		cw.header.Channels = cfg.Channels
	}
	if err := cw.enc.Encode(cw.header); err != nil {
		return nil, fmt.Errorf("write capture header: %w", err)
	}
	return cw, nil
}

// Create creates (or truncates) a capture file at path.
func Create(path, device string, cfg *link.TouchConfig) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, device, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Header returns the header written at creation.
func (w *Writer) Header() Header {
	return w.header
}

// Records returns the number of records written.
func (w *Writer) Records() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Write records a touch_state or touch_error response. Other responses
// are ignored.
func (w *Writer) Write(resp link.Response) error {
	var rec Record
	switch r := resp.(type) {
	case link.TouchState:
		rec = Record{Pin: uint8(r.Pin), Group: r.Group, Count: r.Count, Clock: r.Clock}
	case link.TouchError:
		rec = Record{Pin: uint8(r.Pin), ErrorCode: r.Code}
		if m, ok := tsc.LookupPin(r.Pin); ok {
			rec.Group = m.Group
		}
	default:
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	rec.Received = w.now()
	if err := w.enc.Encode(rec); err != nil {
		return err
	}
	w.records++
	return nil
}

// Close closes the underlying file when the Writer was made by Create.
// It is safe to call Close multiple times.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	// Pins keeps only these pins.
	Pins []tsc.PinID

	// ErrorsOnly keeps only failed acquisitions.
	ErrorsOnly bool
}

func (f *Filter) matches(r Record) bool {
	if f.ErrorsOnly && r.ErrorCode == 0 {
		return false
	}
	if len(f.Pins) == 0 {
		return true
	}
	for _, p := range f.Pins {
		if uint8(p) == r.Pin {
			return true
		}
	}
	return false
}

// Reader reads a capture stream.
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
	header Header
	filter Filter
}

// NewReader reads the header from r.
func NewReader(r io.Reader, filter Filter) (*Reader, error) {
	cr := &Reader{dec: decMode.NewDecoder(r), filter: filter}
	if err := cr.dec.Decode(&cr.header); err != nil {
		if notCapture(err) {
			return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
		}
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if cr.header.Version == 0 || cr.header.SessionID == "" {
		return nil, ErrNotCapture
	}
	return cr, nil
}

// notCapture reports whether a header decode failed on the data itself
// rather than on the underlying reader.
func notCapture(err error) bool {
	var typeErr *cbor.UnmarshalTypeError
	var syntaxErr *cbor.SyntaxError
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &typeErr) || errors.As(err, &syntaxErr)
}

// Open opens the capture file at path.
func Open(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, filter)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Header returns the capture header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record that matches the filter.
// Returns io.EOF when no more records are available.
func (r *Reader) Next() (Record, error) {
	for {
		var rec Record
		if err := r.dec.Decode(&rec); err != nil {
			return Record{}, err
		}
		if r.filter.matches(rec) {
			return rec, nil
		}
	}
}

// ReadAll returns every remaining matching record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close closes the file opened by Open.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
