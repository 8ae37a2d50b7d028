// Package sim provides a scripted VectorNav device behind the serial port
// interface. It answers register reads and writes, follows commanded baud
// changes, and streams binary packets once the binary output register is
// armed. The dev mode of the bridge and the integration-style tests run
// against it instead of hardware.
package sim

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/vectornav/internal/serialport"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

// Device models the sensor on the far end of the wire. It answers commands
// only when the port was opened at the device's current line rate, which is
// what makes baud negotiation against it meaningful.
type Device struct {
	mu sync.Mutex

	model    string
	firmware string
	hardware string
	serial   string

	baud      int
	asyncFreq int
	binCfg    vnproto.BinaryOutputConfig

	// imuRate is the internal sample rate the divisor divides down from.
	imuRate int

	seq    uint64
	active *devicePort

	// Sample produces the packet payload for each streaming cycle. The
	// default walks a synthetic trajectory.
	Sample func(seq uint64) vnproto.CompositeData

	stopStream chan struct{}
}

// NewDevice returns a simulated VN-200 listening at the given baud rate.
func NewDevice(baud int) *Device {
	d := &Device{
		model:     "VN-200T-CR",
		firmware:  "2.0.0.0",
		hardware:  "7",
		serial:    "0100012345",
		baud:      baud,
		asyncFreq: 40,
		imuRate:   800,
	}
	d.Sample = d.defaultSample
	return d
}

// SetModel overrides the reported model number, e.g. to simulate a VN-100.
func (d *Device) SetModel(model string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.model = model
}

// Baud returns the device's current line rate.
func (d *Device) Baud() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baud
}

// Open implements serialport.Factory. Each call produces a fresh port whose
// responder answers only while the opened rate matches the device rate.
func (d *Device) Open(path string, opts serialport.Options) (serialport.Porter, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mp := serialport.NewMockPort()
	dp := &devicePort{dev: d, port: mp, baud: opts.BaudRate}
	mp.Responder = dp.respond

	d.mu.Lock()
	d.active = dp
	d.mu.Unlock()
	return mp, nil
}

// Close stops the packet stream. Idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopStream != nil {
		close(d.stopStream)
		d.stopStream = nil
	}
}

type devicePort struct {
	dev  *Device
	port *serialport.MockPort
	baud int
}

// respond handles one written payload. Hardware at a mismatched rate sees
// line noise and stays silent; the simulator models that as no reply at all.
func (p *devicePort) respond(written []byte) []byte {
	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.baud != d.baud {
		return nil
	}

	var out []byte
	for _, line := range strings.Split(string(written), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, d.handleLocked(line)...)
	}
	return out
}

func (d *Device) handleLocked(line string) []byte {
	verb, fields, err := vnproto.ParseResponse([]byte(line))
	if err != nil {
		// Corrupted command: real hardware answers with an error sentence.
		return errSentence(3)
	}
	switch verb {
	case vnproto.VerbReadRegister:
		return d.readRegisterLocked(fields)
	case vnproto.VerbWriteRegister:
		return d.writeRegisterLocked(fields)
	default:
		return errSentence(4)
	}
}

func (d *Device) readRegisterLocked(fields []string) []byte {
	if len(fields) < 1 {
		return errSentence(5)
	}
	reg, err := strconv.Atoi(fields[0])
	if err != nil {
		return errSentence(7)
	}
	switch reg {
	case vnproto.RegModelNumber:
		return sentence(vnproto.VerbReadRegister, fields[0], d.model)
	case vnproto.RegHardwareRevision:
		return sentence(vnproto.VerbReadRegister, fields[0], d.hardware)
	case vnproto.RegSerialNumber:
		return sentence(vnproto.VerbReadRegister, fields[0], d.serial)
	case vnproto.RegFirmwareVersion:
		return sentence(vnproto.VerbReadRegister, fields[0], d.firmware)
	case vnproto.RegSerialBaudRate:
		return sentence(vnproto.VerbReadRegister, fields[0], strconv.Itoa(d.baud))
	case vnproto.RegAsyncOutputFreq:
		return sentence(vnproto.VerbReadRegister, fields[0], strconv.Itoa(d.asyncFreq))
	case vnproto.RegBinaryOutput1:
		args := append([]string{fields[0]}, d.binCfg.RegisterFields()...)
		return sentence(vnproto.VerbReadRegister, args...)
	default:
		return errSentence(8)
	}
}

func (d *Device) writeRegisterLocked(fields []string) []byte {
	if len(fields) < 2 {
		return errSentence(5)
	}
	reg, err := strconv.Atoi(fields[0])
	if err != nil {
		return errSentence(7)
	}
	switch reg {
	case vnproto.RegSerialBaudRate:
		baud, err := strconv.Atoi(fields[1])
		if err != nil {
			return errSentence(7)
		}
		// The acknowledgement goes out at the old rate; the switch takes
		// effect for everything after it.
		reply := sentence(vnproto.VerbWriteRegister, fields[0], fields[1])
		d.baud = baud
		return reply
	case vnproto.RegAsyncOutputFreq:
		hz, err := strconv.Atoi(fields[1])
		if err != nil {
			return errSentence(7)
		}
		d.asyncFreq = hz
		return sentence(vnproto.VerbWriteRegister, fields[0], fields[1])
	case vnproto.RegBinaryOutput1:
		cfg, err := parseBinaryConfig(fields[1:])
		if err != nil {
			return errSentence(7)
		}
		d.binCfg = cfg
		d.startStreamLocked()
		return sentence(vnproto.VerbWriteRegister, fields...)
	default:
		return errSentence(8)
	}
}

func parseBinaryConfig(fields []string) (vnproto.BinaryOutputConfig, error) {
	var cfg vnproto.BinaryOutputConfig
	if len(fields) < 3 {
		return cfg, fmt.Errorf("short binary config")
	}
	mode, err := strconv.Atoi(fields[0])
	if err != nil {
		return cfg, err
	}
	divisor, err := strconv.Atoi(fields[1])
	if err != nil {
		return cfg, err
	}
	groups, err := strconv.ParseUint(fields[2], 16, 8)
	if err != nil {
		return cfg, err
	}
	cfg.AsyncMode = mode
	cfg.RateDivisor = divisor

	masks := fields[3:]
	next := func() (uint16, error) {
		if len(masks) == 0 {
			return 0, fmt.Errorf("missing field mask")
		}
		v, err := strconv.ParseUint(masks[0], 16, 16)
		masks = masks[1:]
		return uint16(v), err
	}
	if groups&uint64(vnproto.GroupCommon) != 0 {
		if cfg.CommonFields, err = next(); err != nil {
			return cfg, err
		}
	}
	if groups&uint64(vnproto.GroupAttitude) != 0 {
		if cfg.AttitudeFields, err = next(); err != nil {
			return cfg, err
		}
	}
	if groups&uint64(vnproto.GroupINS) != 0 {
		if cfg.INSFields, err = next(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// startStreamLocked (re)starts the async packet stream at the configured
// divisor.
func (d *Device) startStreamLocked() {
	if d.stopStream != nil {
		close(d.stopStream)
		d.stopStream = nil
	}
	if d.binCfg.AsyncMode == vnproto.AsyncModeNone || d.binCfg.RateDivisor <= 0 {
		return
	}
	stop := make(chan struct{})
	d.stopStream = stop
	interval := time.Second * time.Duration(d.binCfg.RateDivisor) / time.Duration(d.imuRate)
	go d.stream(stop, interval)
}

func (d *Device) stream(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.emit()
		}
	}
}

func (d *Device) emit() {
	d.mu.Lock()
	dp := d.active
	cfg := d.binCfg
	d.seq++
	seq := d.seq
	sample := d.Sample
	mismatch := dp == nil || dp.baud != d.baud
	d.mu.Unlock()

	if mismatch || dp.port.Closed() {
		return
	}
	packet, err := vnproto.Encode(vnproto.PacketSpec{
		Common:   cfg.CommonFields,
		Attitude: cfg.AttitudeFields,
		INS:      cfg.INSFields,
		Data:     sample(seq),
	})
	if err != nil {
		return
	}
	dp.port.AddReadData(packet)
}

// defaultSample walks east at 1 m/s from a fixed surveyed point.
func (d *Device) defaultSample(seq uint64) vnproto.CompositeData {
	t := float64(seq) * float64(d.binCfg.RateDivisor) / float64(d.imuRate)
	return vnproto.CompositeData{
		Quaternion:   [4]float64{0, 0, 0, 1},
		AngularRate:  [3]float64{0.001, -0.002, 0.0005},
		Accel:        [3]float64{0, 0, -9.81},
		Mag:          [3]float64{0.21, 0.05, 0.43},
		Temp:         24.5,
		Pres:         101.3,
		PositionLLA:  [3]float64{45.5231, -122.6765, 72.0},
		YprU:         [3]float64{0.5, 0.5, 1.2},
		InsStatus:    2,
		PositionECEF: [3]float64{-2455216.0 + t, -3834984.0, 4536361.0},
		VelBody:      [3]float64{1, 0, 0},
	}
}

func sentence(verb string, fields ...string) []byte {
	return vnproto.FormatCommand(verb, fields...)
}

func errSentence(code int) []byte {
	return vnproto.FormatCommand(vnproto.VerbError, strconv.Itoa(code))
}
