package pub

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vectornav/internal/msg"
)

func TestUDPSink(t *testing.T) {
	t.Parallel()

	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	sink, err := NewUDPSink(listener.LocalAddr().String())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Send(msg.Batch{
		Temp: &msg.Temperature{Celsius: 21.5},
	}))

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 65536)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	var got msg.Batch
	require.NoError(t, json.Unmarshal(buf[:n], &got))
	require.NotNil(t, got.Temp)
	assert.Equal(t, 21.5, got.Temp.Celsius)
	assert.Nil(t, got.Imu)
}

func TestUDPSinkBadDest(t *testing.T) {
	t.Parallel()

	_, err := NewUDPSink("not a destination")
	assert.Error(t, err)
}
