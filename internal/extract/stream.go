package extract

import (
	"bytes"
	"regexp"
)

// dictLookback bounds how far before a stream keyword the object dictionary is searched.
const dictLookback = 4096

var (
	streamKeyword    = []byte("stream")
	endstreamKeyword = []byte("endstream")

	objHeaderRe   = regexp.MustCompile(`\d+\s+\d+\s+obj\b`)
	flateFilterRe = regexp.MustCompile(`/(?:FlateDecode|Fl)\b`)
	anyFilterRe   = regexp.MustCompile(`/Filter\b`)
)

// stream is a stream body sliced from the source buffer with the filter its dictionary declares.
type stream struct {
	data   []byte
	filter Filter
}

// findStreams returns every stream…endstream body in buf, in file order.
func findStreams(buf []byte) []stream {
	var out []stream
	pos := 0
	for pos < len(buf) {
		i := bytes.Index(buf[pos:], streamKeyword)
		if i < 0 {
			break
		}
		start := pos + i
		after := start + len(streamKeyword)
		if start >= 3 && string(buf[start-3:start]) == "end" {
			pos = after
			continue
		}

		dataStart := skipStreamEOL(buf, after)
		if dataStart == after {
			// "stream" inside some other token.
			pos = after
			continue
		}
		j := bytes.Index(buf[dataStart:], endstreamKeyword)
		if j < 0 {
			break
		}
		dataEnd := dataStart + j
		out = append(out, stream{
			data:   trimTrailingEOL(buf[dataStart:dataEnd]),
			filter: detectFilter(buf[:start]),
		})
		pos = dataEnd + len(endstreamKeyword)
	}
	return out
}

// skipStreamEOL skips the line ending after the stream keyword. Stray spaces before it are
// tolerated. It returns pos unchanged when no line ending follows.
func skipStreamEOL(buf []byte, pos int) int {
	p := pos
	for p < len(buf) && buf[p] == ' ' {
		p++
	}
	switch {
	case p+1 < len(buf) && buf[p] == '\r' && buf[p+1] == '\n':
		return p + 2
	case p < len(buf) && (buf[p] == '\n' || buf[p] == '\r'):
		return p + 1
	}
	return pos
}

func trimTrailingEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// detectFilter inspects the dictionary of the object that encloses a stream starting at
// len(before).
func detectFilter(before []byte) Filter {
	window := before
	if len(window) > dictLookback {
		window = window[len(window)-dictLookback:]
	}
	if locs := objHeaderRe.FindAllIndex(window, -1); len(locs) > 0 {
		window = window[locs[len(locs)-1][0]:]
	}
	switch {
	case flateFilterRe.Match(window):
		return FilterFlate
	case anyFilterRe.Match(window):
		return FilterUnknown
	default:
		return FilterNone
	}
}
