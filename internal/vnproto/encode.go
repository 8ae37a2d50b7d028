package vnproto

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AsyncMode values for the binary output register.
const (
	AsyncModeNone  = 0
	AsyncModePort1 = 1
	AsyncModePort2 = 2
	AsyncModeBoth  = 3
)

// BinaryOutputConfig describes one binary output register (register 75). The
// rate divisor divides the internal IMU rate down to the async output rate.
type BinaryOutputConfig struct {
	AsyncMode      int
	RateDivisor    int
	CommonFields   uint16
	AttitudeFields uint16
	INSFields      uint16
}

// Groups returns the groups byte implied by the configured field masks.
func (c BinaryOutputConfig) Groups() byte {
	var g byte
	if c.CommonFields != 0 {
		g |= GroupCommon
	}
	if c.AttitudeFields != 0 {
		g |= GroupAttitude
	}
	if c.INSFields != 0 {
		g |= GroupINS
	}
	return g
}

// RegisterFields renders the register-write fields: async mode and divisor in
// decimal, the groups byte and field masks in hex, masks only for the groups
// that are present.
func (c BinaryOutputConfig) RegisterFields() []string {
	fields := []string{
		fmt.Sprintf("%d", c.AsyncMode),
		fmt.Sprintf("%d", c.RateDivisor),
		fmt.Sprintf("%02X", c.Groups()),
	}
	if c.CommonFields != 0 {
		fields = append(fields, fmt.Sprintf("%04X", c.CommonFields))
	}
	if c.AttitudeFields != 0 {
		fields = append(fields, fmt.Sprintf("%04X", c.AttitudeFields))
	}
	if c.INSFields != 0 {
		fields = append(fields, fmt.Sprintf("%04X", c.INSFields))
	}
	return fields
}

// PacketSpec selects which fields Encode serializes out of the composite
// data. The simulator and the codec tests use it to fabricate device output.
type PacketSpec struct {
	Common   uint16
	Attitude uint16
	INS      uint16
	Data     CompositeData
}

type writer struct {
	buf []byte
}

func (w *writer) uint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}
func (w *writer) float32(v float64) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(float32(v)))
}
func (w *writer) float64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}
func (w *writer) vec3f(v [3]float64) { w.float32(v[0]); w.float32(v[1]); w.float32(v[2]) }
func (w *writer) vec3d(v [3]float64) { w.float64(v[0]); w.float64(v[1]); w.float64(v[2]) }
func (w *writer) zeros(n int) { w.buf = append(w.buf, make([]byte, n)...) }

// Encode builds a complete binary packet (sync byte through CRC) carrying
// the selected fields. Fields selected but not representable from
// CompositeData are zero-filled at their documented size so the framing
// stays consistent.
func Encode(spec PacketSpec) ([]byte, error) {
	groups := byte(0)
	var masks []uint16
	if spec.Common != 0 {
		groups |= GroupCommon
		masks = append(masks, spec.Common)
	}
	if spec.Attitude != 0 {
		groups |= GroupAttitude
		masks = append(masks, spec.Attitude)
	}
	if spec.INS != 0 {
		groups |= GroupINS
		masks = append(masks, spec.INS)
	}
	if groups == 0 {
		return nil, fmt.Errorf("empty packet spec")
	}
	if _, err := PayloadSize(groups, masks); err != nil {
		return nil, err
	}

	w := &writer{}
	w.buf = append(w.buf, groups)
	for _, m := range masks {
		w.uint16(m)
	}
	if spec.Common != 0 {
		encodeCommon(w, spec.Common, spec.Data)
	}
	if spec.Attitude != 0 {
		encodeAttitude(w, spec.Attitude, spec.Data)
	}
	if spec.INS != 0 {
		encodeINS(w, spec.INS, spec.Data)
	}

	packet := make([]byte, 0, len(w.buf)+3)
	packet = append(packet, SyncByte)
	packet = append(packet, w.buf...)
	crc := CRC16(w.buf)
	packet = append(packet, byte(crc>>8), byte(crc))
	return packet, nil
}

func encodeCommon(w *writer, mask uint16, cd CompositeData) {
	for bit := 0; bit < 16; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		switch 1 << bit {
		case CommonQuaternion:
			w.float32(cd.Quaternion[0])
			w.float32(cd.Quaternion[1])
			w.float32(cd.Quaternion[2])
			w.float32(cd.Quaternion[3])
		case CommonAngularRate:
			w.vec3f(cd.AngularRate)
		case CommonPosition:
			w.vec3d(cd.PositionLLA)
		case CommonAccel:
			w.vec3f(cd.Accel)
		case CommonMagPres:
			w.vec3f(cd.Mag)
			w.float32(cd.Temp)
			w.float32(cd.Pres)
		default:
			w.zeros(commonFieldSizes[bit])
		}
	}
}

func encodeAttitude(w *writer, mask uint16, cd CompositeData) {
	for bit := 0; bit < 16; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		switch 1 << bit {
		case AttitudeQuaternion:
			w.float32(cd.Quaternion[0])
			w.float32(cd.Quaternion[1])
			w.float32(cd.Quaternion[2])
			w.float32(cd.Quaternion[3])
		case AttitudeYprU:
			w.vec3f(cd.YprU)
		default:
			w.zeros(attitudeFieldSizes[bit])
		}
	}
}

func encodeINS(w *writer, mask uint16, cd CompositeData) {
	for bit := 0; bit < 16; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		switch 1 << bit {
		case INSStatus:
			w.uint16(cd.InsStatus)
		case INSPosLLA:
			w.vec3d(cd.PositionLLA)
		case INSPosECEF:
			w.vec3d(cd.PositionECEF)
		case INSVelBody:
			w.vec3f(cd.VelBody)
		case INSAccelECEF:
			w.vec3f(cd.AccelECEF)
		default:
			w.zeros(insFieldSizes[bit])
		}
	}
}
