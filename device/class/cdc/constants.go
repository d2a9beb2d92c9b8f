package cdc

// Standard descriptor types (USB 2.0 Table 9-5) used by the log function.
const (
	DescriptorTypeDevice               = 0x01
	DescriptorTypeConfiguration        = 0x02
	DescriptorTypeString               = 0x03
	DescriptorTypeInterface            = 0x04
	DescriptorTypeEndpoint             = 0x05
	DescriptorTypeInterfaceAssociation = 0x0B
	DescriptorTypeCSInterface          = 0x24 // Class-specific Interface
)

// CDC Functional Descriptor subtypes.
const (
	SubtypeHeader         = 0x00 // Header Functional Descriptor
	SubtypeCallManagement = 0x01 // Call Management Functional Descriptor
	SubtypeACM            = 0x02 // Abstract Control Model Functional Descriptor
	SubtypeUnion          = 0x06 // Union Functional Descriptor
)

// Class codes.
const (
	ClassMisc    = 0xEF // Miscellaneous (device uses IAD)
	ClassCDC     = 0x02 // Communications Device Class
	ClassCDCData = 0x0A // CDC Data Class
)

// Subclass and protocol codes.
const (
	SubclassNone   = 0x00
	SubclassCommon = 0x02 // Misc: Common Class
	SubclassACM    = 0x02 // CDC: Abstract Control Model
	ProtocolNone   = 0x00
	ProtocolIAD    = 0x01 // Misc: Interface Association Descriptor
	ProtocolAT     = 0x01 // CDC: AT Commands V.250
)

// CDC request codes.
const (
	RequestSetLineCoding       = 0x20
	RequestGetLineCoding       = 0x21
	RequestSetControlLineState = 0x22
)

// Control line state bits (for SET_CONTROL_LINE_STATE).
const (
	ControlLineDTR = 1 << 0 // Data Terminal Ready
	ControlLineRTS = 1 << 1 // Request To Send
)

// ACM capability bits.
const (
	ACMCapLineCoding = 1 << 1 // Supports Set/Get Line Coding and Set Control Line State
)

// Endpoint attributes.
const (
	EndpointBulk      = 0x02
	EndpointInterrupt = 0x03
)

// Function layout of the log device.
const (
	InterfaceControl   = 0    // Communications interface
	InterfaceData      = 1    // Data interface
	EndpointNotify     = 0x81 // Interrupt IN on the control interface
	EndpointDataIn     = 0x82 // Bulk IN carrying log records
	EndpointDataOut    = 0x02 // Bulk OUT (unused by the log stream)
	NotifyPacketSize   = 8
	BulkPacketSize     = 64
	ControlPacketSize  = 64
	ConfigurationValue = 1
	MaxPowerUnits      = 50   // 100 mA in 2 mA units
	ConfigAttributes   = 0x80 // Bus-powered
	LangIDUSEnglish    = 0x0409
	CDCVersion         = 0x0110
	USBVersion         = 0x0200
)

// String descriptor indices.
const (
	StringLanguages    = 0
	StringManufacturer = 1
	StringProduct      = 2
	StringSerialNumber = 3
	numStrings         = 4
)

// LineCoding represents the serial line configuration. The log stream
// ignores it, but hosts expect to read back what they set.
type LineCoding struct {
	DTERate    uint32 // Data terminal rate (baud rate)
	CharFormat uint8  // Stop bits: 0=1, 1=1.5, 2=2
	ParityType uint8  // Parity: 0=None, 1=Odd, 2=Even, 3=Mark, 4=Space
	DataBits   uint8  // Data bits: 5, 6, 7, 8, or 16
}

// LineCodingSize is the size of LineCoding in bytes.
const LineCodingSize = 7

// DefaultLineCoding is 115200 8N1.
var DefaultLineCoding = LineCoding{
	DTERate:  115200,
	DataBits: 8,
}

// MarshalTo writes the LineCoding to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (lc *LineCoding) MarshalTo(buf []byte) int {
	if len(buf) < LineCodingSize {
		return 0
	}
	buf[0] = byte(lc.DTERate)
	buf[1] = byte(lc.DTERate >> 8)
	buf[2] = byte(lc.DTERate >> 16)
	buf[3] = byte(lc.DTERate >> 24)
	buf[4] = lc.CharFormat
	buf[5] = lc.ParityType
	buf[6] = lc.DataBits
	return LineCodingSize
}

// ParseLineCoding parses LineCoding from data.
// Returns false if data is too short.
func ParseLineCoding(data []byte, out *LineCoding) bool {
	if len(data) < LineCodingSize {
		return false
	}
	out.DTERate = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	out.CharFormat = data[4]
	out.ParityType = data[5]
	out.DataBits = data[6]
	return true
}
