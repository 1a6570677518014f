// Package attachment normalizes raw image payloads handed to sharekit:
// MIME detection and base64 or data URL input.
package attachment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	octetStream = "application/octet-stream"
	sniffLen    = 512
)

// NormalizeMime normalizes MIME to lowercase token form.
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if mime == "" {
		return ""
	}
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// MimeFromDataURL extracts MIME from a data URL.
func MimeFromDataURL(raw string) string {
	value := strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(value), "data:") {
		return ""
	}
	rest := value[len("data:"):]
	if idx := strings.IndexAny(rest, ";,"); idx >= 0 {
		return NormalizeMime(rest[:idx])
	}
	return ""
}

// ResolveImageMime picks the declared MIME when it names an image, then the
// sniffed one, and falls back to application/octet-stream.
func ResolveImageMime(declared, sniffed string) string {
	declared = NormalizeMime(declared)
	sniffed = NormalizeMime(sniffed)
	switch {
	case strings.HasPrefix(declared, "image/"):
		return declared
	case strings.HasPrefix(sniffed, "image/"):
		return sniffed
	case declared != "" && declared != octetStream:
		return declared
	case sniffed != "":
		return sniffed
	default:
		return octetStream
	}
}

// DetectImageMime sniffs in-memory image data.
func DetectImageMime(data []byte, declared string) string {
	sniffed := ""
	if len(data) > 0 {
		sniffed = http.DetectContentType(data[:min(len(data), sniffLen)])
	}
	return ResolveImageMime(declared, sniffed)
}

// PrepareReaderAndMime reads a small prefix for MIME sniffing and replays it.
func PrepareReaderAndMime(reader io.Reader, declared string) (io.Reader, string, error) {
	if reader == nil {
		return nil, "", fmt.Errorf("reader is required")
	}
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(reader, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read mime sniff bytes: %w", err)
	}
	header = header[:n]
	return io.MultiReader(bytes.NewReader(header), reader), DetectImageMime(header, declared), nil
}

// DataURL renders image data as a base64 data URL.
func DataURL(data []byte, mime string) string {
	mime = NormalizeMime(mime)
	if mime == "" {
		mime = octetStream
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes both raw base64 and data URL base64 content.
// The returned reader is bounded to maxBytes+1 for caller-side size validation.
func DecodeBase64(input string, maxBytes int64) (io.Reader, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return nil, fmt.Errorf("base64 payload is empty")
	}
	if strings.HasPrefix(strings.ToLower(value), "data:") {
		if idx := strings.Index(value, ","); idx >= 0 {
			value = value[idx+1:]
		}
	}
	decoder := base64.NewDecoder(base64.StdEncoding, strings.NewReader(value))
	return io.LimitReader(decoder, maxBytes+1), nil
}

// ReadBounded reads all of r, failing if it yields more than maxBytes.
func ReadBounded(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", maxBytes)
	}
	return data, nil
}
