package cdc

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/ardnew/usblog/pkg"
)

// Default identity of the log device.
const (
	DefaultVendorID     = 0x5824
	DefaultProductID    = 0x27dd
	DefaultManufacturer = "usblog"
	DefaultProduct      = "usblog-device"
	DefaultSerialNumber = "USBLOG_LOG_123"
)

// Identity is what the device reports about itself during enumeration.
type Identity struct {
	VendorID      uint16
	ProductID     uint16
	DeviceVersion uint16 // BCD
	Manufacturer  string
	Product       string
	SerialNumber  string
}

// DefaultIdentity returns the identity used when none is configured.
func DefaultIdentity() Identity {
	return Identity{
		VendorID:      DefaultVendorID,
		ProductID:     DefaultProductID,
		DeviceVersion: 0x0100,
		Manufacturer:  DefaultManufacturer,
		Product:       DefaultProduct,
		SerialNumber:  DefaultSerialNumber,
	}
}

// Descriptor sizes.
const (
	DeviceDescriptorSize = 18
	configHeaderSize     = 9
	iadSize              = 8
	interfaceSize        = 9
	endpointSize         = 7
	maxStringSize        = 255

	// ConfigurationSize is the total length of the configuration descriptor
	// set: configuration, IAD, control interface with four functional
	// descriptors and one endpoint, data interface with two endpoints.
	ConfigurationSize = configHeaderSize + iadSize +
		interfaceSize + 5 + 5 + 4 + 5 + endpointSize +
		interfaceSize + endpointSize + endpointSize
)

// Descriptors holds the serialized descriptors of the log device. It is built
// once and only read afterward, so lookups never allocate.
type Descriptors struct {
	device  [DeviceDescriptorSize]byte
	config  [ConfigurationSize]byte
	strings [numStrings][maxStringSize]byte
	strLen  [numStrings]uint8
}

// NewDescriptors serializes the descriptors for id.
func NewDescriptors(id Identity) *Descriptors {
	d := &Descriptors{}
	d.buildDevice(id)
	d.buildConfiguration()

	n := LanguageDescriptorTo(d.strings[StringLanguages][:], LangIDUSEnglish)
	d.strLen[StringLanguages] = uint8(n)
	for i, s := range [...]string{
		StringManufacturer: id.Manufacturer,
		StringProduct:      id.Product,
		StringSerialNumber: id.SerialNumber,
	} {
		if i == StringLanguages {
			continue
		}
		d.strLen[i] = uint8(StringDescriptorTo(d.strings[i][:], s))
	}
	return d
}

// Lookup returns the descriptor of the given type and index, as requested by
// GET_DESCRIPTOR. It reports false for descriptors the device does not have.
func (d *Descriptors) Lookup(descType, index uint8) ([]byte, bool) {
	switch descType {
	case DescriptorTypeDevice:
		return d.device[:], true
	case DescriptorTypeConfiguration:
		if index != 0 {
			return nil, false
		}
		return d.config[:], true
	case DescriptorTypeString:
		if int(index) >= numStrings {
			return nil, false
		}
		return d.strings[index][:d.strLen[index]], true
	default:
		return nil, false
	}
}

// writer appends little-endian fields to a fixed buffer.
type writer struct {
	buf []byte
	off int
}

func (w *writer) u8(vs ...uint8) {
	w.off += copy(w.buf[w.off:], vs)
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (d *Descriptors) buildDevice(id Identity) {
	w := writer{buf: d.device[:]}
	w.u8(DeviceDescriptorSize, DescriptorTypeDevice)
	w.u16(USBVersion)
	w.u8(ClassMisc, SubclassCommon, ProtocolIAD, ControlPacketSize)
	w.u16(id.VendorID)
	w.u16(id.ProductID)
	w.u16(id.DeviceVersion)
	w.u8(StringManufacturer, StringProduct, StringSerialNumber, 1)
}

func (d *Descriptors) buildConfiguration() {
	w := writer{buf: d.config[:]}

	w.u8(configHeaderSize, DescriptorTypeConfiguration)
	w.u16(ConfigurationSize)
	w.u8(2, ConfigurationValue, 0, ConfigAttributes, MaxPowerUnits)

	w.u8(iadSize, DescriptorTypeInterfaceAssociation,
		InterfaceControl, 2, ClassCDC, SubclassACM, ProtocolAT, 0)

	w.u8(interfaceSize, DescriptorTypeInterface,
		InterfaceControl, 0, 1, ClassCDC, SubclassACM, ProtocolAT, 0)
	w.u8(5, DescriptorTypeCSInterface, SubtypeHeader)
	w.u16(CDCVersion)
	w.u8(5, DescriptorTypeCSInterface, SubtypeCallManagement, 0, InterfaceData)
	w.u8(4, DescriptorTypeCSInterface, SubtypeACM, ACMCapLineCoding)
	w.u8(5, DescriptorTypeCSInterface, SubtypeUnion, InterfaceControl, InterfaceData)
	w.u8(endpointSize, DescriptorTypeEndpoint, EndpointNotify, EndpointInterrupt)
	w.u16(NotifyPacketSize)
	w.u8(16)

	w.u8(interfaceSize, DescriptorTypeInterface,
		InterfaceData, 0, 2, ClassCDCData, SubclassNone, ProtocolNone, 0)
	w.u8(endpointSize, DescriptorTypeEndpoint, EndpointDataIn, EndpointBulk)
	w.u16(BulkPacketSize)
	w.u8(0)
	w.u8(endpointSize, DescriptorTypeEndpoint, EndpointDataOut, EndpointBulk)
	w.u16(BulkPacketSize)
	w.u8(0)
}

// StringDescriptorTo writes s as a UTF-16LE string descriptor to buf,
// truncating to the 255-byte descriptor limit. Returns the number of bytes
// written, or 0 if buf is too small.
func StringDescriptorTo(buf []byte, s string) int {
	units := utf16.Encode([]rune(s))
	if limit := (maxStringSize - 2) / 2; len(units) > limit {
		units = units[:limit]
	}
	length := 2 + 2*len(units)
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[2+2*i:], u)
	}
	return length
}

// LanguageDescriptorTo writes string descriptor zero listing langIDs.
// Returns the number of bytes written, or 0 if buf is too small.
func LanguageDescriptorTo(buf []byte, langIDs ...uint16) int {
	length := 2 + 2*len(langIDs)
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	for i, id := range langIDs {
		binary.LittleEndian.PutUint16(buf[2+2*i:], id)
	}
	return length
}

// DecodeString decodes a string descriptor.
func DecodeString(data []byte) (string, error) {
	if len(data) < 2 || int(data[0]) > len(data) || data[0] < 2 {
		return "", pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeString {
		return "", pkg.ErrDescriptorTypeMismatch
	}
	n := (int(data[0]) - 2) / 2
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[2+2*i:])
	}
	return string(utf16.Decode(units)), nil
}

// DeviceDescriptor is the decoded form of the 18-byte device descriptor.
type DeviceDescriptor struct {
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// ParseDeviceDescriptor parses a device descriptor from data into out.
// Returns an error if the data is too short or the descriptor type is wrong.
func ParseDeviceDescriptor(data []byte, out *DeviceDescriptor) error {
	if len(data) < DeviceDescriptorSize {
		return pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeDevice {
		return pkg.ErrDescriptorTypeMismatch
	}
	out.USBVersion = binary.LittleEndian.Uint16(data[2:4])
	out.DeviceClass = data[4]
	out.DeviceSubClass = data[5]
	out.DeviceProtocol = data[6]
	out.MaxPacketSize0 = data[7]
	out.VendorID = binary.LittleEndian.Uint16(data[8:10])
	out.ProductID = binary.LittleEndian.Uint16(data[10:12])
	out.DeviceVersion = binary.LittleEndian.Uint16(data[12:14])
	out.ManufacturerIndex = data[14]
	out.ProductIndex = data[15]
	out.SerialNumberIndex = data[16]
	out.NumConfigurations = data[17]
	return nil
}

// Matches reports whether the descriptor carries the identity's vendor and
// product IDs, wrapping [pkg.ErrDescriptorMismatch] otherwise.
func (dd *DeviceDescriptor) Matches(vid, pid uint16) error {
	if dd.VendorID != vid || dd.ProductID != pid {
		return fmt.Errorf("%w: got %04x:%04x, want %04x:%04x",
			pkg.ErrDescriptorMismatch, dd.VendorID, dd.ProductID, vid, pid)
	}
	return nil
}
