// Package sensor is the device handle for a VectorNav unit on a serial port:
// register reads and writes with response timeout and retransmit, the baud
// change command, and dispatch of asynchronous binary packets to a
// registered handler.
package sensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/vectornav/internal/serialport"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

// ErrTimeout is returned when the device does not answer a register command
// within the configured response timeout.
var ErrTimeout = errors.New("response timeout")

// ErrNotConnected is returned for register operations without an open port.
var ErrNotConnected = errors.New("not connected")

// PacketHandler is invoked once per decoded binary packet, on the sensor's
// read-loop goroutine. It must not block.
type PacketHandler func(vnproto.CompositeData)

// Family identifies the device product line. The VN-100 has no GNSS
// receiver, which matters when interpreting INS fields.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyVN100
	FamilyVN200
	FamilyVN300
)

func (f Family) String() string {
	switch f {
	case FamilyVN100:
		return "VN-100"
	case FamilyVN200:
		return "VN-200"
	case FamilyVN300:
		return "VN-300"
	default:
		return "unknown"
	}
}

// Identity is read once after link establishment and is immutable
// thereafter. It feeds logs and diagnostics, not the per-packet path.
type Identity struct {
	Model       string `json:"model"`
	Firmware    string `json:"firmware"`
	HardwareRev uint32 `json:"hardware_rev"`
	Serial      uint32 `json:"serial"`
	Family      Family `json:"family"`
}

// Stats are running counters maintained by the read loop.
type Stats struct {
	Packets      uint64 `json:"packets"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// Sensor drives one device over one serial path. All register operations are
// request/response over the ASCII protocol; binary packets arrive
// interleaved on the same wire and are demultiplexed by the read loop.
type Sensor struct {
	factory serialport.Factory
	path    string

	respTimeout     time.Duration
	retransmitDelay time.Duration

	mu         sync.Mutex
	port       serialport.Porter
	baud       int
	readerStop chan struct{}
	readerWG   sync.WaitGroup

	pendingMu sync.Mutex
	pending   chan asciiReply

	handler atomic.Pointer[PacketHandler]

	packets      atomic.Uint64
	decodeErrors atomic.Uint64
}

type asciiReply struct {
	verb   string
	fields []string
	err    error
}

// New returns a sensor handle for the device at path. Ports are opened
// through the factory so the link negotiator can retry at several baud
// rates.
func New(factory serialport.Factory, path string) *Sensor {
	return &Sensor{
		factory:         factory,
		path:            path,
		respTimeout:     time.Second,
		retransmitDelay: 50 * time.Millisecond,
	}
}

// SetResponseTimeout bounds how long a register command waits for an answer.
func (s *Sensor) SetResponseTimeout(d time.Duration) { s.respTimeout = d }

// SetRetransmitDelay sets how often an unanswered command is re-sent within
// the response timeout window.
func (s *Sensor) SetRetransmitDelay(d time.Duration) { s.retransmitDelay = d }

// Path returns the serial device path.
func (s *Sensor) Path() string { return s.path }

// Baud returns the baud rate of the currently open port, or 0.
func (s *Sensor) Baud() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

// Connected reports whether a port is open.
func (s *Sensor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

// Stats returns the read-loop counters.
func (s *Sensor) Stats() Stats {
	return Stats{Packets: s.packets.Load(), DecodeErrors: s.decodeErrors.Load()}
}

// Connect opens the serial port at the given baud rate and starts the read
// loop. It does not verify that a device is listening; the first register
// command does that implicitly.
func (s *Sensor) Connect(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return fmt.Errorf("already connected at %d baud", s.baud)
	}
	port, err := s.factory.Open(s.path, serialport.Options{BaudRate: baud})
	if err != nil {
		return fmt.Errorf("open %s at %d baud: %w", s.path, baud, err)
	}
	// Short poll interval so the read loop can notice a stop request.
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout: %w", err)
	}
	s.port = port
	s.baud = baud
	s.readerStop = make(chan struct{})
	s.readerWG.Add(1)
	go s.readLoop(port, s.readerStop)
	return nil
}

// Disconnect stops the read loop and closes the port. The read loop is fully
// drained before the port closes, so no packet callback can observe a closed
// port.
func (s *Sensor) Disconnect() error {
	s.mu.Lock()
	port := s.port
	stop := s.readerStop
	s.port = nil
	s.baud = 0
	s.readerStop = nil
	s.mu.Unlock()

	if port == nil {
		return nil
	}
	close(stop)
	s.readerWG.Wait()
	return port.Close()
}

// ChangeBaud commands the device to switch its serial rate (register 5),
// then reopens the local port at the new rate.
func (s *Sensor) ChangeBaud(baud int) error {
	if _, err := s.transact(vnproto.VerbWriteRegister,
		strconv.Itoa(vnproto.RegSerialBaudRate), strconv.Itoa(baud)); err != nil {
		return fmt.Errorf("change baud to %d: %w", baud, err)
	}
	if err := s.Disconnect(); err != nil {
		return fmt.Errorf("reopen after baud change: %w", err)
	}
	return s.Connect(baud)
}

// VerifyConnectivity reads the model number register and reports whether the
// device answered.
func (s *Sensor) VerifyConnectivity() bool {
	_, err := s.readRegister(vnproto.RegModelNumber)
	return err == nil
}

// ReadIdentity reads the model, firmware, hardware revision and serial
// number registers.
func (s *Sensor) ReadIdentity() (Identity, error) {
	var id Identity

	model, err := s.readRegister(vnproto.RegModelNumber)
	if err != nil {
		return id, fmt.Errorf("read model number: %w", err)
	}
	id.Model = firstField(model)
	id.Family = familyFromModel(id.Model)

	fw, err := s.readRegister(vnproto.RegFirmwareVersion)
	if err != nil {
		return id, fmt.Errorf("read firmware version: %w", err)
	}
	id.Firmware = firstField(fw)

	hw, err := s.readRegister(vnproto.RegHardwareRevision)
	if err != nil {
		return id, fmt.Errorf("read hardware revision: %w", err)
	}
	if v, err := strconv.ParseUint(firstField(hw), 10, 32); err == nil {
		id.HardwareRev = uint32(v)
	}

	sn, err := s.readRegister(vnproto.RegSerialNumber)
	if err != nil {
		return id, fmt.Errorf("read serial number: %w", err)
	}
	if v, err := strconv.ParseUint(firstField(sn), 10, 32); err == nil {
		id.Serial = uint32(v)
	}

	return id, nil
}

// WriteAsyncOutputFrequency sets the async data output frequency register.
func (s *Sensor) WriteAsyncOutputFrequency(hz int) error {
	_, err := s.transact(vnproto.VerbWriteRegister,
		strconv.Itoa(vnproto.RegAsyncOutputFreq), strconv.Itoa(hz))
	if err != nil {
		return fmt.Errorf("write async output frequency %d: %w", hz, err)
	}
	return nil
}

// WriteBinaryOutput1 configures binary output register 1 with the given
// groups and rate divisor.
func (s *Sensor) WriteBinaryOutput1(cfg vnproto.BinaryOutputConfig) error {
	fields := append([]string{strconv.Itoa(vnproto.RegBinaryOutput1)}, cfg.RegisterFields()...)
	if _, err := s.transact(vnproto.VerbWriteRegister, fields...); err != nil {
		return fmt.Errorf("write binary output register: %w", err)
	}
	return nil
}

// RegisterAsyncPacketHandler installs the packet callback. Only one handler
// is supported; installing replaces any previous one.
func (s *Sensor) RegisterAsyncPacketHandler(h PacketHandler) {
	s.handler.Store(&h)
}

// UnregisterAsyncPacketHandler removes the packet callback. Packets that are
// already in flight on the read loop may still be delivered; callers should
// allow a grace period before Disconnect.
func (s *Sensor) UnregisterAsyncPacketHandler() {
	s.handler.Store(nil)
}

func (s *Sensor) readRegister(reg int) ([]string, error) {
	fields, err := s.transact(vnproto.VerbReadRegister, strconv.Itoa(reg))
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// transact writes one command and waits for the matching response,
// re-sending every retransmit interval until the response timeout expires.
func (s *Sensor) transact(verb string, fields ...string) ([]string, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return nil, ErrNotConnected
	}

	cmd := vnproto.FormatCommand(verb, fields...)

	replyCh := make(chan asciiReply, 1)
	s.pendingMu.Lock()
	s.pending = replyCh
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		s.pending = nil
		s.pendingMu.Unlock()
	}()

	deadline := time.NewTimer(s.respTimeout)
	defer deadline.Stop()
	retransmit := time.NewTicker(s.retransmitDelay)
	defer retransmit.Stop()

	if _, err := port.Write(cmd); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	for {
		select {
		case reply := <-replyCh:
			if reply.err != nil {
				return reply.fields, reply.err
			}
			// Responses echo the command verb and register; anything else is
			// a stale line and the wait continues.
			if reply.verb != verb || len(reply.fields) == 0 || len(fields) == 0 ||
				reply.fields[0] != fields[0] {
				s.pendingMu.Lock()
				s.pending = replyCh
				s.pendingMu.Unlock()
				continue
			}
			return reply.fields[1:], nil
		case <-retransmit.C:
			if _, err := port.Write(cmd); err != nil {
				return nil, fmt.Errorf("retransmit command: %w", err)
			}
		case <-deadline.C:
			return nil, ErrTimeout
		}
	}
}

func firstField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func familyFromModel(model string) Family {
	switch {
	case strings.HasPrefix(model, "VN-100"):
		return FamilyVN100
	case strings.HasPrefix(model, "VN-200"):
		return FamilyVN200
	case strings.HasPrefix(model, "VN-300"):
		return FamilyVN300
	default:
		return FamilyUnknown
	}
}
