package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vectornav/internal/link"
	"github.com/banshee-data/vectornav/internal/sensor"
	"github.com/banshee-data/vectornav/internal/serialport"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

func TestDeviceSilentAtWrongBaud(t *testing.T) {
	t.Parallel()

	device := NewDevice(9600)
	defer device.Close()

	port, err := device.Open("/dev/ttyUSB0", serialport.Options{BaudRate: 115200})
	require.NoError(t, err)
	require.NoError(t, port.SetReadTimeout(50*time.Millisecond))

	_, err = port.Write(vnproto.FormatCommand(vnproto.VerbReadRegister, "1"))
	require.NoError(t, err)

	n, err := port.Read(make([]byte, 64))
	require.NoError(t, err)
	assert.Zero(t, n, "mismatched rate must read as silence")
}

func TestDeviceAnswersRegisterReads(t *testing.T) {
	t.Parallel()

	device := NewDevice(9600)
	defer device.Close()

	port, err := device.Open("/dev/ttyUSB0", serialport.Options{BaudRate: 9600})
	require.NoError(t, err)
	require.NoError(t, port.SetReadTimeout(100*time.Millisecond))

	_, err = port.Write(vnproto.FormatCommand(vnproto.VerbReadRegister, "1"))
	require.NoError(t, err)

	buf := make([]byte, 256)
	n, err := port.Read(buf)
	require.NoError(t, err)
	verb, fields, err := vnproto.ParseResponse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, vnproto.VerbReadRegister, verb)
	require.Len(t, fields, 2)
	assert.Equal(t, "1", fields[0])
	assert.Equal(t, "VN-200T-CR", fields[1])
}

func TestDeviceRejectsUnknownRegister(t *testing.T) {
	t.Parallel()

	device := NewDevice(9600)
	defer device.Close()

	port, err := device.Open("/dev/ttyUSB0", serialport.Options{BaudRate: 9600})
	require.NoError(t, err)
	require.NoError(t, port.SetReadTimeout(100*time.Millisecond))

	_, err = port.Write(vnproto.FormatCommand(vnproto.VerbReadRegister, "99"))
	require.NoError(t, err)

	buf := make([]byte, 256)
	n, err := port.Read(buf)
	require.NoError(t, err)
	_, _, err = vnproto.ParseResponse(buf[:n])
	var devErr *vnproto.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, 8, devErr.Code)
}

func TestDeviceFollowsBaudChange(t *testing.T) {
	t.Parallel()

	device := NewDevice(9600)
	defer device.Close()

	port, err := device.Open("/dev/ttyUSB0", serialport.Options{BaudRate: 9600})
	require.NoError(t, err)
	require.NoError(t, port.SetReadTimeout(100*time.Millisecond))

	_, err = port.Write(vnproto.FormatCommand(vnproto.VerbWriteRegister, "5", "115200"))
	require.NoError(t, err)

	// The acknowledgement arrives at the old rate.
	buf := make([]byte, 256)
	n, err := port.Read(buf)
	require.NoError(t, err)
	verb, _, err := vnproto.ParseResponse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, vnproto.VerbWriteRegister, verb)
	assert.Equal(t, 115200, device.Baud())

	// The old port is now mismatched and reads as silence.
	_, err = port.Write(vnproto.FormatCommand(vnproto.VerbReadRegister, "1"))
	require.NoError(t, err)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestDeviceStreamsAfterArming drives the full bring-up against the
// simulator: negotiate, configure the stream, and receive decoded packets.
func TestDeviceStreamsAfterArming(t *testing.T) {
	t.Parallel()

	device := NewDevice(9600)
	defer device.Close()

	sen := sensor.New(device, "/dev/ttyUSB0")
	n := link.NewNegotiator(sen, link.Config{
		RequestedBaud:   115200,
		ResponseTimeout: 300 * time.Millisecond,
		RetransmitDelay: 30 * time.Millisecond,
		SettleDelay:     time.Millisecond,
	})
	require.NoError(t, n.Establish(context.Background()))
	defer sen.Disconnect()

	got := make(chan vnproto.CompositeData, 1)
	spec := link.DefaultStreamSpec(40, 800)
	require.NoError(t, link.ConfigureStream(sen, spec, func(cd vnproto.CompositeData) {
		select {
		case got <- cd:
		default:
		}
	}))

	select {
	case cd := <-got:
		assert.True(t, cd.HasQuaternion)
		assert.True(t, cd.HasPositionECEF)
		assert.True(t, cd.HasVelBody)
	case <-time.After(2 * time.Second):
		t.Fatal("no packet from armed device")
	}
}
