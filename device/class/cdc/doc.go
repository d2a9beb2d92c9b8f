// Package cdc describes the log device as a USB CDC-ACM (Abstract Control
// Model) function.
//
// The function has two interfaces grouped by an Interface Association
// Descriptor:
//
//   - Control interface 0 (Communications Class) with the Header, Call
//     Management, ACM and Union functional descriptors and an interrupt IN
//     notification endpoint (0x81)
//   - Data interface 1 (Data Class) with a bulk IN endpoint (0x82) carrying
//     log records and a bulk OUT endpoint (0x02)
//
// [NewDescriptors] serializes every descriptor once into fixed arrays so the
// bus can answer GET_DESCRIPTOR from interrupt context without allocating:
//
//	desc := cdc.NewDescriptors(cdc.DefaultIdentity())
//	data, ok := desc.Lookup(cdc.DescriptorTypeString, cdc.StringProduct)
//
// The host side decodes what it receives with [ParseDeviceDescriptor] and
// [DecodeString].
package cdc
