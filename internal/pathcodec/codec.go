package pathcodec

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the document encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Compression wraps an encoded document.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseFormat defaults to JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("%w: unknown path format %q", core.ErrConfiguration, s)
	}
}

// ParseCompression defaults to no compression.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, "gz":
		return CompressionGzip, nil
	case CompressionZstd, "zst":
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("%w: unknown compression %q", core.ErrConfiguration, s)
	}
}

// Extension returns the file suffix for a format and compression, e.g.
// ".json.gz" or ".msgpack.zst".
func Extension(f Format, c Compression) string {
	ext := "." + string(f)
	switch c {
	case CompressionGzip:
		ext += ".gz"
	case CompressionZstd:
		ext += ".zst"
	}
	return ext
}

// SplitName recognises a file written with Extension and returns its id.
func SplitName(name string) (id string, f Format, c Compression, ok bool) {
	for _, format := range []Format{FormatJSON, FormatMsgpack} {
		for _, comp := range []Compression{CompressionGzip, CompressionZstd, CompressionNone} {
			if ext := Extension(format, comp); strings.HasSuffix(name, ext) && len(name) > len(ext) {
				return strings.TrimSuffix(name, ext), format, comp, true
			}
		}
	}
	return "", "", "", false
}

// Marshal encodes p without compression.
func Marshal(p *core.ReferencePath, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, p, f, CompressionNone); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes an uncompressed document and validates it.
func Unmarshal(data []byte, f Format) (*core.ReferencePath, error) {
	return Read(bytes.NewReader(data), f, CompressionNone)
}

// Write encodes p to w.
func Write(w io.Writer, p *core.ReferencePath, f Format, c Compression) error {
	if p == nil {
		return fmt.Errorf("%w: nil path", core.ErrInvalidOperation)
	}
	doc := FromPath(p)

	var closer io.Closer
	switch c {
	case CompressionGzip:
		gw := gzip.NewWriter(w)
		w, closer = gw, gw
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		w, closer = zw, zw
	case CompressionNone:
	default:
		return fmt.Errorf("%w: unknown compression %q", core.ErrConfiguration, c)
	}

	var err error
	switch f {
	case FormatJSON:
		err = json.NewEncoder(w).Encode(doc)
	case FormatMsgpack:
		err = msgpack.NewEncoder(w).Encode(&doc)
	default:
		err = fmt.Errorf("%w: unknown path format %q", core.ErrConfiguration, f)
	}
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return fmt.Errorf("failed to encode path %s: %w", p.ID, err)
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// Read decodes and validates a document from r. Decoding failures and
// structural violations both wrap core.ErrDataIntegrity.
func Read(r io.Reader, f Format, c Compression) (*core.ReferencePath, error) {
	switch c {
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrDataIntegrity, err)
		}
		defer gr.Close()
		r = gr
	case CompressionZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrDataIntegrity, err)
		}
		defer zr.Close()
		r = zr
	case CompressionNone:
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", core.ErrConfiguration, c)
	}

	var doc Document
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(&doc)
	default:
		return nil, fmt.Errorf("%w: unknown path format %q", core.ErrConfiguration, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDataIntegrity, err)
	}
	return doc.ToPath()
}
