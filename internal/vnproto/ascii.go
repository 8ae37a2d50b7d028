// Package vnproto implements the VectorNav UART wire formats: ASCII register
// commands with their XOR checksum, and the binary output packets produced by
// the configurable telemetry stream.
package vnproto

import (
	"fmt"
	"strconv"
	"strings"
)

// Register IDs used by the bridge.
const (
	RegModelNumber      = 1
	RegHardwareRevision = 2
	RegSerialNumber     = 3
	RegFirmwareVersion  = 4
	RegSerialBaudRate   = 5
	RegAsyncOutputFreq  = 7
	RegBinaryOutput1    = 75
)

// ASCII sentence verbs.
const (
	VerbReadRegister  = "VNRRG"
	VerbWriteRegister = "VNWRG"
	VerbError         = "VNERR"
)

// DeviceError is a $VNERR response from the sensor: the command reached the
// device and was rejected.
type DeviceError struct {
	Code int
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error %d: %s", e.Code, deviceErrorText(e.Code))
}

func deviceErrorText(code int) string {
	switch code {
	case 1:
		return "hard fault"
	case 2:
		return "serial buffer overflow"
	case 3:
		return "invalid checksum"
	case 4:
		return "invalid command"
	case 5:
		return "not enough parameters"
	case 6:
		return "too many parameters"
	case 7:
		return "invalid parameter"
	case 8:
		return "invalid register"
	case 9:
		return "unauthorized access"
	case 10:
		return "watchdog reset"
	case 11:
		return "output buffer overflow"
	case 12:
		return "insufficient baud rate"
	case 255:
		return "error buffer overflow"
	default:
		return "unknown"
	}
}

// Checksum8 computes the 8-bit XOR checksum over the sentence body, the bytes
// between '$' and '*'.
func Checksum8(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum ^= b
	}
	return sum
}

// FormatCommand assembles a full ASCII sentence, e.g.
// FormatCommand("VNWRG", "07", "40") -> "$VNWRG,07,40*59\r\n".
func FormatCommand(verb string, fields ...string) []byte {
	body := verb
	if len(fields) > 0 {
		body += "," + strings.Join(fields, ",")
	}
	return []byte(fmt.Sprintf("$%s*%02X\r\n", body, Checksum8([]byte(body))))
}

// ParseResponse validates and splits one ASCII sentence. The line may carry
// the trailing CR/LF. A $VNERR sentence is surfaced as a *DeviceError so
// callers can distinguish device rejection from line corruption.
func ParseResponse(line []byte) (verb string, fields []string, err error) {
	s := strings.TrimSpace(string(line))
	if len(s) < 2 || s[0] != '$' {
		return "", nil, fmt.Errorf("not a sentence: %q", s)
	}
	star := strings.LastIndexByte(s, '*')
	if star < 0 || len(s)-star != 3 {
		return "", nil, fmt.Errorf("missing checksum: %q", s)
	}
	body := s[1:star]
	want, err := strconv.ParseUint(s[star+1:], 16, 8)
	if err != nil {
		return "", nil, fmt.Errorf("bad checksum field: %q", s)
	}
	if got := Checksum8([]byte(body)); got != byte(want) {
		return "", nil, fmt.Errorf("checksum mismatch: got %02X want %02X in %q", got, want, s)
	}

	parts := strings.Split(body, ",")
	verb = parts[0]
	fields = parts[1:]

	if verb == VerbError {
		code := 0
		if len(fields) > 0 {
			code, _ = strconv.Atoi(fields[0])
		}
		return verb, fields, &DeviceError{Code: code}
	}
	return verb, fields, nil
}
