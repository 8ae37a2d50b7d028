package pub

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/banshee-data/vectornav/internal/msg"
)

// UDPSink forwards published batches as JSON datagrams to a fixed
// destination, one batch per datagram.
type UDPSink struct {
	dest string
	conn *net.UDPConn
}

// NewUDPSink resolves dest and opens the socket.
func NewUDPSink(dest string) (*UDPSink, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &UDPSink{dest: dest, conn: conn}, nil
}

// Send encodes and transmits one batch.
func (s *UDPSink) Send(b msg.Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	_, err = s.conn.Write(payload)
	return err
}

// Close closes the socket.
func (s *UDPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
