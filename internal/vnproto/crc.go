package vnproto

// CRC16 computes the CCITT CRC (polynomial 0x1021, zero initial value) used
// by the binary output packets. The CRC covers every byte after the sync
// byte; appending the transmitted CRC to the input yields zero for a valid
// packet.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc<<8 | crc>>8
		crc ^= uint16(b)
		crc ^= (crc & 0xFF) >> 4
		crc ^= crc << 12
		crc ^= (crc & 0xFF) << 5
	}
	return crc
}
