package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by mock port operations after Close.
var ErrPortClosed = errors.New("serial port closed")

// MockPort implements Porter with configurable behaviour for testing. Reads
// drain a buffer that tests (or a Responder hook) fill; writes are captured
// for inspection.
type MockPort struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	readTimeout time.Duration
	closed      bool

	// ReadErr is returned by the next Read call if set, then cleared.
	ReadErr error

	// WriteErr is returned by the next Write call if set, then cleared.
	WriteErr error

	// CloseErr is returned by Close if set.
	CloseErr error

	// Responder, when set, is invoked with each written payload and its
	// return value is queued for subsequent reads. This is how tests script
	// a device on the far end of the wire.
	Responder func(written []byte) []byte

	// WriteCalls records the number of Write calls.
	WriteCalls int
}

// NewMockPort returns an empty mock port.
func NewMockPort() *MockPort {
	return &MockPort{}
}

// Read drains buffered data. With no data available it blocks until data
// arrives, the port closes, or the read timeout expires; timeout expiry
// returns (0, nil) to match real port semantics.
func (p *MockPort) Read(b []byte) (int, error) {
	var deadline time.Time
	p.mu.Lock()
	if p.readTimeout > 0 {
		deadline = time.Now().Add(p.readTimeout)
	}
	for {
		if p.closed {
			p.mu.Unlock()
			return 0, ErrPortClosed
		}
		if p.ReadErr != nil {
			err := p.ReadErr
			p.ReadErr = nil
			p.mu.Unlock()
			return 0, err
		}
		if p.readBuf.Len() > 0 {
			n, _ := p.readBuf.Read(b)
			p.mu.Unlock()
			return n, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			p.mu.Unlock()
			return 0, nil
		}
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		p.mu.Lock()
	}
}

// Write captures the payload and feeds it to the Responder if one is set.
func (p *MockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.WriteCalls++
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if p.WriteErr != nil {
		err := p.WriteErr
		p.WriteErr = nil
		p.mu.Unlock()
		return 0, err
	}
	p.writeBuf.Write(b)
	responder := p.Responder
	p.mu.Unlock()

	if responder != nil {
		if reply := responder(b); len(reply) > 0 {
			p.AddReadData(reply)
		}
	}
	return len(b), nil
}

// Close marks the port closed. Blocked readers observe it within one poll
// interval.
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.CloseErr
}

// SetReadTimeout implements Porter.
func (p *MockPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = timeout
	return nil
}

// AddReadData queues data for subsequent Read calls.
func (p *MockPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.Write(data)
}

// WrittenData returns everything written to the port so far.
func (p *MockPort) WrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, p.writeBuf.Len())
	copy(out, p.writeBuf.Bytes())
	return out
}

// Closed reports whether Close has been called.
func (p *MockPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// OpenCall records the arguments of one MockFactory.Open invocation.
type OpenCall struct {
	Path string
	Opts Options
}

// MockFactory implements Factory for testing. Every Open call is recorded;
// the OpenFunc hook decides what port (or error) each call receives, which
// lets negotiation tests answer differently per baud rate.
type MockFactory struct {
	mu sync.Mutex

	// OpenFunc produces the port for each call. When nil, a fresh empty
	// MockPort is returned.
	OpenFunc func(path string, opts Options) (Porter, error)

	calls []OpenCall
}

// Open implements Factory.
func (f *MockFactory) Open(path string, opts Options) (Porter, error) {
	f.mu.Lock()
	f.calls = append(f.calls, OpenCall{Path: path, Opts: opts})
	fn := f.OpenFunc
	f.mu.Unlock()

	if fn == nil {
		return NewMockPort(), nil
	}
	return fn(path, opts)
}

// Calls returns a copy of the recorded Open calls.
func (f *MockFactory) Calls() []OpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OpenCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// BaudsTried returns the baud rate of each recorded Open call, in order.
func (f *MockFactory) BaudsTried() []int {
	calls := f.Calls()
	out := make([]int, len(calls))
	for i, c := range calls {
		out[i] = c.Opts.BaudRate
	}
	return out
}
