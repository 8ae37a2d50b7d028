package vnproto

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SyncByte introduces every binary output packet.
const SyncByte = 0xFA

// Binary output group bits (the groups byte following the sync byte).
const (
	GroupCommon   = 0x01
	GroupTime     = 0x02
	GroupIMU      = 0x04
	GroupGPS      = 0x08
	GroupAttitude = 0x10
	GroupINS      = 0x20
	GroupGPS2     = 0x40
)

// Common group field bits.
const (
	CommonTimeStartup  = 1 << 0
	CommonTimeGPS      = 1 << 1
	CommonTimeSyncIn   = 1 << 2
	CommonYawPitchRoll = 1 << 3
	CommonQuaternion   = 1 << 4
	CommonAngularRate  = 1 << 5
	CommonPosition     = 1 << 6
	CommonVelocity     = 1 << 7
	CommonAccel        = 1 << 8
	CommonIMU          = 1 << 9
	CommonMagPres      = 1 << 10
	CommonDeltaTheta   = 1 << 11
	CommonInsStatus    = 1 << 12
	CommonSyncInCnt    = 1 << 13
	CommonTimeGPSPPS   = 1 << 14
)

// Attitude group field bits.
const (
	AttitudeVpeStatus       = 1 << 0
	AttitudeYawPitchRoll    = 1 << 1
	AttitudeQuaternion      = 1 << 2
	AttitudeDCM             = 1 << 3
	AttitudeMagNED          = 1 << 4
	AttitudeAccelNED        = 1 << 5
	AttitudeLinearAccelBody = 1 << 6
	AttitudeLinearAccelNED  = 1 << 7
	AttitudeYprU            = 1 << 8
)

// INS group field bits.
const (
	INSStatus          = 1 << 0
	INSPosLLA          = 1 << 1
	INSPosECEF         = 1 << 2
	INSVelBody         = 1 << 3
	INSVelNED          = 1 << 4
	INSVelECEF         = 1 << 5
	INSMagECEF         = 1 << 6
	INSAccelECEF       = 1 << 7
	INSLinearAccelECEF = 1 << 8
	INSPosU            = 1 << 9
	INSVelU            = 1 << 10
)

// Per-field payload sizes in bytes, indexed by bit position. A zero entry
// marks a field the bridge does not understand; packets advertising one are
// rejected rather than mis-sliced.
var (
	commonFieldSizes = [16]int{8, 8, 8, 12, 16, 12, 24, 12, 12, 24, 20, 28, 2, 4, 8, 0}

	attitudeFieldSizes = [16]int{2, 12, 16, 36, 12, 12, 12, 12, 12, 0, 0, 0, 0, 0, 0, 0}

	insFieldSizes = [16]int{2, 24, 24, 12, 12, 12, 12, 12, 12, 4, 4, 0, 0, 0, 0, 0}
)

var groupOrder = []struct {
	bit   byte
	sizes *[16]int
}{
	{GroupCommon, &commonFieldSizes},
	{GroupTime, nil},
	{GroupIMU, nil},
	{GroupGPS, nil},
	{GroupAttitude, &attitudeFieldSizes},
	{GroupINS, &insFieldSizes},
	{GroupGPS2, nil},
}

// groupPayloadSize sums the field sizes selected by mask.
func groupPayloadSize(sizes *[16]int, mask uint16) (int, error) {
	if sizes == nil && mask != 0 {
		return 0, fmt.Errorf("unsupported output group in packet")
	}
	total := 0
	for bit := 0; bit < 16; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		size := sizes[bit]
		if size == 0 {
			return 0, fmt.Errorf("unsupported field bit %d", bit)
		}
		total += size
	}
	return total, nil
}

// HeaderMasks extracts the per-group field masks that follow the groups
// byte. header must start at the groups byte.
func HeaderMasks(header []byte) (masks []uint16, headerLen int, err error) {
	if len(header) < 1 {
		return nil, 0, fmt.Errorf("short header")
	}
	groups := header[0]
	off := 1
	for _, g := range groupOrder {
		if groups&g.bit == 0 {
			continue
		}
		if len(header) < off+2 {
			return nil, 0, fmt.Errorf("short header for groups %#02x", groups)
		}
		masks = append(masks, binary.LittleEndian.Uint16(header[off:]))
		off += 2
	}
	if groups &^ knownGroups() != 0 {
		return nil, 0, fmt.Errorf("unknown group bits %#02x", groups)
	}
	return masks, off, nil
}

func knownGroups() byte {
	var all byte
	for _, g := range groupOrder {
		all |= g.bit
	}
	return all
}

// PayloadSize computes the total payload length implied by the groups byte
// and its field masks.
func PayloadSize(groups byte, masks []uint16) (int, error) {
	total := 0
	i := 0
	for _, g := range groupOrder {
		if groups&g.bit == 0 {
			continue
		}
		if i >= len(masks) {
			return 0, fmt.Errorf("missing field mask for group %#02x", g.bit)
		}
		n, err := groupPayloadSize(g.sizes, masks[i])
		if err != nil {
			return 0, err
		}
		total += n
		i++
	}
	return total, nil
}

// CompositeData is the decoded, named-field view of one binary packet. Has*
// flags distinguish "absent this cycle" from a true zero reading.
type CompositeData struct {
	HasQuaternion bool
	Quaternion    [4]float64 // x, y, z, w (scalar last)

	HasAngularRate bool
	AngularRate    [3]float64 // rad/s, body frame

	HasAccel bool
	Accel    [3]float64 // m/s^2, body frame

	HasPositionLLA bool
	PositionLLA    [3]float64 // deg, deg, m

	HasMag bool
	Mag    [3]float64 // gauss

	HasTemp bool
	Temp    float64 // degC

	HasPres bool
	Pres    float64 // kPa

	HasYprU bool
	YprU    [3]float64 // yaw/pitch/roll 1-sigma, deg

	HasInsStatus bool
	InsStatus    uint16

	HasPositionECEF bool
	PositionECEF    [3]float64 // m

	HasVelBody bool
	VelBody    [3]float64 // m/s

	HasAccelECEF bool
	AccelECEF    [3]float64 // m/s^2
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) skip(n int)     { r.off += n }
func (r *reader) uint16() uint16 { v := binary.LittleEndian.Uint16(r.buf[r.off:]); r.off += 2; return v }
func (r *reader) float32() float64 {
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return float64(v)
}
func (r *reader) float64() float64 {
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v
}
func (r *reader) vec3f() [3]float64 { return [3]float64{r.float32(), r.float32(), r.float32()} }
func (r *reader) vec3d() [3]float64 { return [3]float64{r.float64(), r.float64(), r.float64()} }

// Decode parses a complete binary packet, sync byte through CRC, into
// composite data. The CRC is verified before any field is touched.
func Decode(packet []byte) (CompositeData, error) {
	var cd CompositeData
	if len(packet) < 4 || packet[0] != SyncByte {
		return cd, fmt.Errorf("not a binary packet")
	}
	if CRC16(packet[1:]) != 0 {
		return cd, fmt.Errorf("crc mismatch")
	}

	masks, headerLen, err := HeaderMasks(packet[1 : len(packet)-2])
	if err != nil {
		return cd, err
	}
	groups := packet[1]
	payload := packet[1+headerLen : len(packet)-2]
	want, err := PayloadSize(groups, masks)
	if err != nil {
		return cd, err
	}
	if len(payload) != want {
		return cd, fmt.Errorf("payload length %d, header implies %d", len(payload), want)
	}

	r := &reader{buf: payload}
	mi := 0
	for _, g := range groupOrder {
		if groups&g.bit == 0 {
			continue
		}
		mask := masks[mi]
		mi++
		switch g.bit {
		case GroupCommon:
			decodeCommon(r, mask, &cd)
		case GroupAttitude:
			decodeAttitude(r, mask, &cd)
		case GroupINS:
			decodeINS(r, mask, &cd)
		}
	}
	return cd, nil
}

func decodeCommon(r *reader, mask uint16, cd *CompositeData) {
	for bit := 0; bit < 16; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		switch 1 << bit {
		case CommonQuaternion:
			cd.Quaternion = [4]float64{r.float32(), r.float32(), r.float32(), r.float32()}
			cd.HasQuaternion = true
		case CommonAngularRate:
			cd.AngularRate = r.vec3f()
			cd.HasAngularRate = true
		case CommonPosition:
			cd.PositionLLA = r.vec3d()
			cd.HasPositionLLA = true
		case CommonAccel:
			cd.Accel = r.vec3f()
			cd.HasAccel = true
		case CommonMagPres:
			cd.Mag = r.vec3f()
			cd.Temp = r.float32()
			cd.Pres = r.float32()
			cd.HasMag, cd.HasTemp, cd.HasPres = true, true, true
		default:
			r.skip(commonFieldSizes[bit])
		}
	}
}

func decodeAttitude(r *reader, mask uint16, cd *CompositeData) {
	for bit := 0; bit < 16; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		switch 1 << bit {
		case AttitudeQuaternion:
			cd.Quaternion = [4]float64{r.float32(), r.float32(), r.float32(), r.float32()}
			cd.HasQuaternion = true
		case AttitudeYprU:
			cd.YprU = r.vec3f()
			cd.HasYprU = true
		default:
			r.skip(attitudeFieldSizes[bit])
		}
	}
}

func decodeINS(r *reader, mask uint16, cd *CompositeData) {
	for bit := 0; bit < 16; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		switch 1 << bit {
		case INSStatus:
			cd.InsStatus = r.uint16()
			cd.HasInsStatus = true
		case INSPosLLA:
			cd.PositionLLA = r.vec3d()
			cd.HasPositionLLA = true
		case INSPosECEF:
			cd.PositionECEF = r.vec3d()
			cd.HasPositionECEF = true
		case INSVelBody:
			cd.VelBody = r.vec3f()
			cd.HasVelBody = true
		case INSAccelECEF:
			cd.AccelECEF = r.vec3f()
			cd.HasAccelECEF = true
		default:
			r.skip(insFieldSizes[bit])
		}
	}
}
