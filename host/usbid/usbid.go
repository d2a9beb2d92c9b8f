package usbid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// DefaultPaths lists the usual locations of the usb.ids database.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// Names maps vendor and product IDs to names. A nil *Names knows no names.
type Names struct {
	vendors  map[uint16]string
	products map[uint32]string // vid<<16 | pid
}

// Load parses the first database found in paths, or [DefaultPaths] when
// none are given.
func Load(paths ...string) (*Names, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return Parse(f)
	}
	return nil, fmt.Errorf("usb.ids: %w", fs.ErrNotExist)
}

// Parse reads the usb.ids format: vendor lines "vvvv  Name", each followed
// by product lines "\tpppp  Name". Class, language and other sections that
// follow the vendor list are skipped.
func Parse(r io.Reader) (*Names, error) {
	n := &Names{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
	}
	sc := bufio.NewScanner(r)
	var (
		vid      uint16
		inVendor bool
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == '\t' {
			if !inVendor || strings.HasPrefix(line, "\t\t") {
				continue
			}
			if pid, name, ok := entry(line[1:]); ok {
				n.products[uint32(vid)<<16|uint32(pid)] = name
			}
			continue
		}
		id, name, ok := entry(line)
		inVendor = ok
		if ok {
			vid = id
			n.vendors[vid] = name
		}
	}
	return n, sc.Err()
}

// entry splits "xxxx  Name" into its hexadecimal ID and name.
func entry(s string) (uint16, string, bool) {
	if len(s) < 6 || s[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	name := strings.TrimSpace(s[5:])
	return uint16(id), name, name != ""
}

// Vendor returns the name of vid, or "".
func (n *Names) Vendor(vid uint16) string {
	if n == nil {
		return ""
	}
	return n.vendors[vid]
}

// Product returns the name of pid under vid, or "".
func (n *Names) Product(vid, pid uint16) string {
	if n == nil {
		return ""
	}
	return n.products[uint32(vid)<<16|uint32(pid)]
}

// Describe renders vid:pid followed by whatever names are known.
func (n *Names) Describe(vid, pid uint16) string {
	s := fmt.Sprintf("%04x:%04x", vid, pid)
	if v := n.Vendor(vid); v != "" {
		s += " " + v
	}
	if p := n.Product(vid, pid); p != "" {
		s += " " + p
	}
	return s
}

// Len returns the number of vendors and products known.
func (n *Names) Len() (vendors, products int) {
	if n == nil {
		return 0, 0
	}
	return len(n.vendors), len(n.products)
}
