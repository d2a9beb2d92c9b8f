// Package usbid resolves USB vendor and product IDs to names using the
// usb.ids database shipped with usbutils and hwdata.
//
//	names, err := usbid.Load()
//	fmt.Println(names.Describe(0x5824, 0x27dd))
//
// A missing database is not fatal to callers: a nil *Names answers every
// lookup with "" and Describe falls back to the bare IDs.
package usbid
