package receiver

import "bytes"

// DefaultMaxRecord bounds a reassembled record.
const DefaultMaxRecord = 4096

// splitter reassembles newline-terminated records from arbitrary chunks.
// Records longer than max are discarded through their terminating newline.
type splitter struct {
	buf      []byte
	max      int
	skipping bool
}

func newSplitter(max int) *splitter {
	if max <= 0 {
		max = DefaultMaxRecord
	}
	return &splitter{buf: make([]byte, 0, max), max: max}
}

// feed appends chunk and calls emit for each complete record, without its
// newline. The slice passed to emit is only valid during the call. It
// returns the number of oversized records dropped.
func (s *splitter) feed(chunk []byte, emit func([]byte)) (dropped int) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			if s.skipping {
				return dropped
			}
			if len(s.buf)+len(chunk) > s.max {
				s.buf = s.buf[:0]
				s.skipping = true
				dropped++
				return dropped
			}
			s.buf = append(s.buf, chunk...)
			return dropped
		}

		line := chunk[:i]
		chunk = chunk[i+1:]
		if s.skipping {
			s.skipping = false
			continue
		}
		if len(s.buf)+len(line) > s.max {
			s.buf = s.buf[:0]
			dropped++
			continue
		}
		if len(s.buf) == 0 {
			emit(line)
			continue
		}
		s.buf = append(s.buf, line...)
		emit(s.buf)
		s.buf = s.buf[:0]
	}
	return dropped
}

// reset discards any partial record and reports its length.
func (s *splitter) reset() int {
	n := len(s.buf)
	s.buf = s.buf[:0]
	s.skipping = false
	return n
}
