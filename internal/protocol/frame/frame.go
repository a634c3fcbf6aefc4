package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// ChunkSize is how much is read from the stream per call.
	ChunkSize = 1024
	// DefaultMaxFrameSize bounds how much a peer may send without a terminator.
	DefaultMaxFrameSize = 1 << 20
)

// Terminator ends every frame. Frame bodies are JSON with hex fields, so it never occurs inside one.
var Terminator = []byte("::END::")

var (
	ErrConnection    = errors.New("connection error")
	ErrFrameTooLarge = errors.New("frame too large")
)

// Framer reads and writes terminator-delimited frames on one stream.
//
// ReadFrame must be called from a single goroutine; WriteFrame may be called concurrently.
type Framer struct {
	rw       io.ReadWriter
	maxFrame int

	buf   []byte
	chunk []byte

	wmu sync.Mutex
}

// New wraps rw. maxFrame <= 0 selects DefaultMaxFrameSize.
func New(rw io.ReadWriter, maxFrame int) *Framer {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Framer{
		rw:       rw,
		maxFrame: maxFrame,
		chunk:    make([]byte, ChunkSize),
	}
}

// WriteFrame writes body followed by the terminator in a single write.
func (f *Framer) WriteFrame(body []byte) error {
	out := make([]byte, 0, len(body)+len(Terminator))
	out = append(out, body...)
	out = append(out, Terminator...)

	f.wmu.Lock()
	defer f.wmu.Unlock()

	for len(out) > 0 {
		n, err := f.rw.Write(out)
		if err != nil {
			return fmt.Errorf("%w: write: %w", ErrConnection, err)
		}
		out = out[n:]
	}
	return nil
}

// ReadFrame blocks until a whole frame has arrived and returns it without the terminator.
// Bytes read past the terminator are kept for the next call.
func (f *Framer) ReadFrame() ([]byte, error) {
	scanFrom := 0
	for {
		if i := bytes.Index(f.buf[scanFrom:], Terminator); i >= 0 {
			end := scanFrom + i
			body := append([]byte(nil), f.buf[:end]...)
			f.buf = append(f.buf[:0], f.buf[end+len(Terminator):]...)
			return body, nil
		}
		if len(f.buf) > f.maxFrame {
			return nil, fmt.Errorf("%w: more than %d bytes without terminator", ErrFrameTooLarge, f.maxFrame)
		}
		// the terminator may straddle two chunks
		scanFrom = max(0, len(f.buf)-len(Terminator)+1)

		n, err := f.rw.Read(f.chunk)
		if n > 0 {
			f.buf = append(f.buf, f.chunk[:n]...)
			continue
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) && len(f.buf) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read: %w", ErrConnection, err)
	}
}
