package sensor

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/vectornav/internal/monitoring"
	"github.com/banshee-data/vectornav/internal/serialport"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

const maxSentenceLen = 256

// readLoop demultiplexes the wire: ASCII sentences are routed to the pending
// register transaction, binary packets are decoded and handed to the
// registered packet handler. It runs until the stop channel closes or the
// port fails.
func (s *Sensor) readLoop(port serialport.Porter, stop chan struct{}) {
	defer s.readerWG.Done()

	pr := &portReader{port: port, stop: stop}
	for {
		b, err := pr.readByte()
		if err != nil {
			return
		}
		switch b {
		case '$':
			line, err := pr.readSentence()
			if err != nil {
				return
			}
			s.routeSentence(line)
		case vnproto.SyncByte:
			packet, perr, fatal := pr.readPacket()
			if fatal {
				return
			}
			if perr != nil {
				s.decodeErrors.Add(1)
				monitoring.Logf("dropping malformed packet: %v", perr)
				continue
			}
			s.dispatchPacket(packet)
		default:
			// Resync noise between frames.
		}
	}
}

func (s *Sensor) routeSentence(line []byte) {
	verb, fields, err := vnproto.ParseResponse(line)
	if err != nil {
		if _, ok := err.(*vnproto.DeviceError); !ok {
			// Line corruption; a pending transaction will retransmit.
			return
		}
	}
	s.pendingMu.Lock()
	pending := s.pending
	s.pendingMu.Unlock()
	if pending == nil {
		return
	}
	select {
	case pending <- asciiReply{verb: verb, fields: fields, err: err}:
	default:
	}
}

func (s *Sensor) dispatchPacket(packet []byte) {
	cd, err := vnproto.Decode(packet)
	if err != nil {
		s.decodeErrors.Add(1)
		monitoring.Logf("dropping malformed packet: %v", err)
		return
	}
	s.packets.Add(1)
	if h := s.handler.Load(); h != nil {
		(*h)(cd)
	}
}

// portReader adds single-byte buffering over a Porter whose Read returns
// (0, nil) on timeout.
type portReader struct {
	port serialport.Porter
	stop chan struct{}
	buf  [4096]byte
	r, w int
}

func (pr *portReader) readByte() (byte, error) {
	for pr.r >= pr.w {
		select {
		case <-pr.stop:
			return 0, fmt.Errorf("stopped")
		default:
		}
		n, err := pr.port.Read(pr.buf[:])
		if err != nil {
			return 0, err
		}
		pr.r, pr.w = 0, n
	}
	b := pr.buf[pr.r]
	pr.r++
	return b, nil
}

// readSentence consumes bytes up to and including LF. The leading '$' has
// already been consumed; the returned line re-includes it for the parser.
func (pr *portReader) readSentence() ([]byte, error) {
	line := make([]byte, 0, 64)
	line = append(line, '$')
	for len(line) < maxSentenceLen {
		b, err := pr.readByte()
		if err != nil {
			return nil, err
		}
		line = append(line, b)
		if b == '\n' {
			return line, nil
		}
	}
	// Oversized garbage; discard and resync.
	return line, nil
}

// readPacket reads the remainder of a binary packet after its sync byte.
// perr flags a malformed frame (drop and resync); fatal means the port is
// gone.
func (pr *portReader) readPacket() (packet []byte, perr error, fatal bool) {
	header := make([]byte, 1, 16)
	b, err := pr.readByte()
	if err != nil {
		return nil, nil, true
	}
	header[0] = b // groups byte

	// One 16-bit field mask per advertised group.
	maskCount := 0
	for bit := 0; bit < 8; bit++ {
		if b&(1<<bit) != 0 {
			maskCount++
		}
	}
	masks := make([]uint16, 0, maskCount)
	for i := 0; i < maskCount; i++ {
		lo, err := pr.readByte()
		if err != nil {
			return nil, nil, true
		}
		hi, err := pr.readByte()
		if err != nil {
			return nil, nil, true
		}
		header = append(header, lo, hi)
		masks = append(masks, binary.LittleEndian.Uint16([]byte{lo, hi}))
	}

	payloadLen, err := vnproto.PayloadSize(header[0], masks)
	if err != nil {
		return nil, err, false
	}

	rest := make([]byte, payloadLen+2) // payload + CRC
	for i := range rest {
		b, err := pr.readByte()
		if err != nil {
			return nil, nil, true
		}
		rest[i] = b
	}

	packet = make([]byte, 0, 1+len(header)+len(rest))
	packet = append(packet, vnproto.SyncByte)
	packet = append(packet, header...)
	packet = append(packet, rest...)
	return packet, nil, false
}
