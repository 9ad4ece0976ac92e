package extract

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"errors"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
)

// Filter is the compression declared for a PDF stream.
type Filter int

const (
	FilterNone Filter = iota
	FilterFlate
	FilterUnknown
)

func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterFlate:
		return "flate"
	default:
		return "unknown"
	}
}

// maxInflatedSize caps the output of a single stream.
const maxInflatedSize = 64 << 20

// inflateStep is one decompression attempt. It reports false when it produced nothing usable.
type inflateStep struct {
	name string
	fn   func([]byte) ([]byte, bool)
}

var inflateSteps = []inflateStep{
	{"deflate", inflateRaw},
	{"deflate-tolerant", inflateTolerant},
	{"zlib", inflateZlib},
	{"codec", inflateCodec},
	{"zlib-synthetic-header", inflateSyntheticHeader},
}

// decompress returns the decoded stream and the step that decoded it. Non-flate data, and flate
// data that no step can decode, is returned unchanged with an empty step name.
func decompress(data []byte, f Filter) ([]byte, string) {
	if f != FilterFlate || len(data) == 0 {
		return data, ""
	}
	for _, step := range inflateSteps {
		if out, ok := step.fn(data); ok && len(out) > 0 {
			return out, step.name
		}
	}
	return data, ""
}

func inflateRaw(data []byte) ([]byte, bool) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxInflatedSize))
	return out, err == nil
}

// inflateTolerant retries raw deflate past a two-byte zlib header, when one is present, and then
// from the start, keeping the output of a stream that ends early.
func inflateTolerant(data []byte) ([]byte, bool) {
	skips := []int{0}
	if hasZlibHeader(data) {
		skips = []int{2, 0}
	}
	for _, skip := range skips {
		r := flate.NewReader(bytes.NewReader(data[skip:]))
		out, err := io.ReadAll(io.LimitReader(r, maxInflatedSize))
		_ = r.Close()
		if len(out) > 0 && (err == nil || errors.Is(err, io.ErrUnexpectedEOF)) {
			return out, true
		}
	}
	return nil, false
}

func inflateZlib(data []byte) ([]byte, bool) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxInflatedSize))
	return out, err == nil
}

// inflateCodec decodes through pdfcpu's FlateDecode filter.
func inflateCodec(data []byte) (out []byte, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = nil, false
		}
	}()
	fl, err := filter.NewFilter(filter.Flate, nil)
	if err != nil {
		return nil, false
	}
	r, err := fl.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	out, err = io.ReadAll(io.LimitReader(r, maxInflatedSize))
	return out, err == nil
}

// inflateSyntheticHeader prepends a zlib header for data whose header was stripped. A missing or
// wrong trailing checksum is tolerated.
func inflateSyntheticHeader(data []byte) ([]byte, bool) {
	framed := make([]byte, 0, len(data)+2)
	framed = append(framed, 0x78, 0x9C)
	framed = append(framed, data...)
	r, err := zlib.NewReader(bytes.NewReader(framed))
	if err != nil {
		return nil, false
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxInflatedSize))
	if err != nil && !errors.Is(err, zlib.ErrChecksum) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, false
	}
	return out, len(out) > 0
}

// hasZlibHeader checks the CMF/FLG pair: deflate method, window <= 32K, FCHECK valid.
func hasZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0F == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
