package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// parseSeqSet expands an IMAP sequence set (e.g. "1:3,5,7:*") into the
// concrete numbers it denotes, where max is the current highest valid
// value ("*"). Both plain sequence numbers and UIDs use this grammar; the
// caller picks what max means for its case.
func parseSeqSet(spec string, max uint32) ([]uint32, error) {
	if max == 0 {
		return nil, nil
	}
	var out []uint32
	seen := make(map[uint32]bool)
	for _, part := range strings.Split(spec, ",") {
		lo, hi, err := parseRange(part, max)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		for v := lo; v <= hi; v++ {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func parseRange(part string, max uint32) (uint32, uint32, error) {
	if idx := strings.IndexByte(part, ':'); idx >= 0 {
		lo, err := parseSeqNum(part[:idx], max)
		if err != nil {
			return 0, 0, err
		}
		hi, err := parseSeqNum(part[idx+1:], max)
		if err != nil {
			return 0, 0, err
		}
		return lo, hi, nil
	}
	v, err := parseSeqNum(part, max)
	return v, v, err
}

func parseSeqNum(token string, max uint32) (uint32, error) {
	if token == "*" {
		return max, nil
	}
	n, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("imap: invalid sequence number %q", token)
	}
	return uint32(n), nil
}
