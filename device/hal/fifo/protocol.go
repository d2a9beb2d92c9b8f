package fifo

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
)

// Message types on the control and status FIFOs.
const (
	MsgSetup = 0x01 // SETUP packet, optionally followed by OUT data (host → device)
	MsgData  = 0x02 // IN data stage (device → host)
	MsgAck   = 0x03 // Status stage completed (device → host)
	MsgStall = 0x05 // Request rejected (device → host)
	MsgReset = 0x12 // Port reset (host → device)
)

// HeaderSize is the size of a message header: type (1) + length (2).
const HeaderSize = 3

// MaxPayload is the largest message payload either side accepts.
const MaxPayload = 512

// Connection signal bytes (device → host).
const (
	SigConnect    = 0x01 // Device attached and ready
	SigDisconnect = 0x00 // Device detaching
)

// FIFO file names inside a device directory.
const (
	FileConnection = "connection" // device → host connection signals
	FileControl    = "control"    // host → device requests
	FileStatus     = "status"     // device → host replies
	FileDataIn     = "ep2_in"     // bulk IN byte stream
)

// DevicePrefix prefixes every device directory name under the bus directory.
const DevicePrefix = "device-"

// PutHeader writes a message header for a payload of n bytes to buf.
// Returns HeaderSize, or 0 if buf is too small.
func PutHeader(buf []byte, msgType byte, n int) int {
	if len(buf) < HeaderSize {
		return 0
	}
	buf[0] = msgType
	binary.LittleEndian.PutUint16(buf[1:3], uint16(n))
	return HeaderSize
}

// ParseHeader decodes a message header. It reports false if buf is shorter
// than a header.
func ParseHeader(buf []byte) (msgType byte, n int, ok bool) {
	if len(buf) < HeaderSize {
		return 0, 0, false
	}
	return buf[0], int(binary.LittleEndian.Uint16(buf[1:3])), true
}

// generateUUID generates a random UUID using crypto/rand.
func generateUUID() (string, error) {
	var uuid [16]byte
	if _, err := rand.Read(uuid[:]); err != nil {
		return "", err
	}
	// Set version 4 (random) bits
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return hex.EncodeToString(uuid[:]), nil
}
