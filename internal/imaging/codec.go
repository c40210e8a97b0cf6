// Package imaging turns base64-encoded payloads into validated raster
// images. All limits are enforced before the expensive raster decode.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// Format identifies a supported raster format, detected by content.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWEBP Format = "webp"
)

// SupportedFormats lists the formats the codec accepts, in sniffing order.
var SupportedFormats = []Format{FormatJPEG, FormatPNG, FormatWEBP}

// Image is a decoded raster owned by a single request. It is never shared
// or mutated after creation.
type Image struct {
	Pixels image.Image
	Format Format
	// Data holds the raw decoded bytes, kept so downstream adapters can
	// forward the original file without re-encoding.
	Data []byte
}

// DecodeError reports a malformed payload: broken base64 or bytes that
// sniff as a supported format but fail to decode.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode error: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SizeLimitError reports a payload whose decoded length exceeds the
// configured maximum.
type SizeLimitError struct {
	Size  int
	Limit int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("decoded image is %d bytes, exceeds the %d byte limit", e.Size, e.Limit)
}

// UnsupportedFormatError reports bytes that do not match any supported
// raster signature.
type UnsupportedFormatError struct{}

func (e *UnsupportedFormatError) Error() string {
	names := make([]string, len(SupportedFormats))
	for i, f := range SupportedFormats {
		names[i] = string(f)
	}
	return fmt.Sprintf("unsupported image format, accepted formats: %s", strings.Join(names, ", "))
}

// Decode validates and decodes a base64 payload, optionally carrying a
// data-URI prefix ("data:<mime>;base64,"). Validation order: base64
// alphabet, decoded size, content signature, raster decode.
func Decode(encoded string, maxBytes int) (*Image, error) {
	payload := stripDataURI(strings.TrimSpace(encoded))
	payload = compact(payload)
	if payload == "" {
		return nil, &DecodeError{Reason: "empty image payload"}
	}

	// Cheap lower-bound check so oversized payloads fail before the
	// base64 pass allocates the full buffer.
	if est := base64.StdEncoding.DecodedLen(len(payload)); est-2 > maxBytes {
		return nil, &SizeLimitError{Size: est, Limit: maxBytes}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty image payload"}
	}
	if len(data) > maxBytes {
		return nil, &SizeLimitError{Size: len(data), Limit: maxBytes}
	}

	format, ok := SniffFormat(data)
	if !ok {
		return nil, &UnsupportedFormatError{}
	}

	pixels, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("corrupt %s data", format), Err: err}
	}

	return &Image{Pixels: pixels, Format: format, Data: data}, nil
}

// SniffFormat detects a supported raster format from leading magic bytes,
// independent of any claimed extension or MIME type.
func SniffFormat(data []byte) (Format, bool) {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return FormatJPEG, true
	}
	if len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}) {
		return FormatPNG, true
	}
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return FormatWEBP, true
	}
	return "", false
}

func stripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if idx := strings.Index(s, ";base64,"); idx >= 0 {
		return s[idx+len(";base64,"):]
	}
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// compact drops whitespace that some encoders insert into base64 text.
func compact(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
