// Package codec encodes photos into a schema-versioned byte format for
// persistence and hand-off between processes.
//
// The layout uses protobuf wire framing: a sequence of tagged fields, with
// the schema version always first. Optional fields are omitted when absent.
//
//	1 schema version  varint
//	2 image data      bytes
//	3 url             bytes
//	4 asset id        bytes
//	5 user generated  varint (bool)
//	6 caption         bytes
//	15 end of record  varint (0)
//
// Every record ends with the end-of-record field. Input that stops before it
// is truncated, even when it stops cleanly between two fields.
//
// The codec does not enforce the one-source rule; a photo with several
// sources (or none) round-trips unchanged.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/memohai/sharekit/internal/share"
)

// SchemaVersion is the only version this codec reads and writes.
const SchemaVersion = 1

const (
	DefaultMaxImageBytes int64 = 32 << 20
	DefaultChunkSize           = 64 << 10
	// MaxStringBytes bounds url, asset id and caption fields.
	MaxStringBytes = 64 << 10

	maxVarintLen = 10
)

const (
	fieldVersion       protowire.Number = 1
	fieldImage         protowire.Number = 2
	fieldURL           protowire.Number = 3
	fieldAssetID       protowire.Number = 4
	fieldUserGenerated protowire.Number = 5
	fieldCaption       protowire.Number = 6
	fieldEnd           protowire.Number = 15
)

var (
	ErrSchemaMismatch = errors.New("codec: schema mismatch")
	ErrTruncated      = errors.New("codec: truncated input")
	ErrTooLarge       = errors.New("codec: field too large")
)

// Codec reads and writes encoded photos. It is stateless after construction
// and safe for concurrent use.
type Codec struct {
	maxImageBytes int64
	chunkSize     int
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxImageBytes bounds the image field on both encode and decode.
func WithMaxImageBytes(n int64) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxImageBytes = n
		}
	}
}

// WithChunkSize sets how much image data is handed to the writer at once.
func WithChunkSize(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// New returns a codec with default limits adjusted by opts.
func New(opts ...Option) *Codec {
	c := &Codec{
		maxImageBytes: DefaultMaxImageBytes,
		chunkSize:     DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxImageBytes returns the configured image limit.
func (c *Codec) MaxImageBytes() int64 { return c.maxImageBytes }

// Encode writes p to w. Image data is streamed in chunks and never copied
// into an intermediate buffer.
func (c *Codec) Encode(w io.Writer, p share.Photo) error {
	if int64(len(p.Image)) > c.maxImageBytes {
		return fmt.Errorf("%w: image is %d bytes, max %d", ErrTooLarge, len(p.Image), c.maxImageBytes)
	}
	if len(p.URL) > MaxStringBytes || len(p.AssetID) > MaxStringBytes ||
		(p.Caption != nil && len(*p.Caption) > MaxStringBytes) {
		return fmt.Errorf("%w: string fields are limited to %d bytes", ErrTooLarge, MaxStringBytes)
	}

	buf := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, SchemaVersion)

	if len(p.Image) > 0 {
		buf = protowire.AppendTag(buf, fieldImage, protowire.BytesType)
		buf = protowire.AppendVarint(buf, uint64(len(p.Image)))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		buf = buf[:0]
		for off := 0; off < len(p.Image); off += c.chunkSize {
			end := min(off+c.chunkSize, len(p.Image))
			if _, err := w.Write(p.Image[off:end]); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
		}
	}
	if p.URL != "" {
		buf = protowire.AppendTag(buf, fieldURL, protowire.BytesType)
		buf = protowire.AppendString(buf, p.URL)
	}
	if p.AssetID != "" {
		buf = protowire.AppendTag(buf, fieldAssetID, protowire.BytesType)
		buf = protowire.AppendString(buf, p.AssetID)
	}
	buf = protowire.AppendTag(buf, fieldUserGenerated, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeBool(p.UserGenerated))
	if p.Caption != nil {
		buf = protowire.AppendTag(buf, fieldCaption, protowire.BytesType)
		buf = protowire.AppendString(buf, *p.Caption)
	}
	buf = protowire.AppendTag(buf, fieldEnd, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 0)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write fields: %w", err)
	}
	return nil
}

// Marshal encodes p into a single byte slice.
func (c *Codec) Marshal(p share.Photo) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(p.Image) + len(p.URL) + len(p.AssetID) + 32)
	if err := c.Encode(&out, p); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Unmarshal decodes a photo from data.
func (c *Codec) Unmarshal(data []byte) (share.Photo, error) {
	return c.Decode(bytes.NewReader(data))
}

// Decode reads one encoded photo from r. The record must be terminated by
// the end-of-record field and followed by EOF.
//
// A missing user-generated field decodes as true, matching the constructors.
func (c *Codec) Decode(r io.Reader) (share.Photo, error) {
	d := decoder{r: bufio.NewReader(r), maxImageBytes: c.maxImageBytes}

	num, typ, err := d.readTag()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return share.Photo{}, fmt.Errorf("%w: empty input", ErrTruncated)
		}
		return share.Photo{}, err
	}
	if num != fieldVersion || typ != protowire.VarintType {
		return share.Photo{}, fmt.Errorf("%w: missing schema version", ErrSchemaMismatch)
	}
	version, err := d.readVarint("schema version")
	if err != nil {
		return share.Photo{}, err
	}
	if version != SchemaVersion {
		return share.Photo{}, fmt.Errorf("%w: version %d", ErrSchemaMismatch, version)
	}

	p := share.Photo{UserGenerated: true}
	for {
		num, typ, err := d.readTag()
		if errors.Is(err, io.EOF) {
			return share.Photo{}, fmt.Errorf("%w: missing end of record", ErrTruncated)
		}
		if err != nil {
			return share.Photo{}, err
		}
		switch num {
		case fieldEnd:
			if err := expectType(num, typ, protowire.VarintType); err != nil {
				return share.Photo{}, err
			}
			if _, err := d.readVarint("end of record"); err != nil {
				return share.Photo{}, err
			}
			if _, err := d.r.Peek(1); !errors.Is(err, io.EOF) {
				if err != nil {
					return share.Photo{}, fmt.Errorf("read trailing data: %w", err)
				}
				return share.Photo{}, fmt.Errorf("%w: data after end of record", ErrSchemaMismatch)
			}
			return p, nil
		case fieldVersion:
			return share.Photo{}, fmt.Errorf("%w: repeated schema version", ErrSchemaMismatch)
		case fieldImage:
			if err := expectType(num, typ, protowire.BytesType); err != nil {
				return share.Photo{}, err
			}
			if p.Image, err = d.readBytes("image", d.maxImageBytes); err != nil {
				return share.Photo{}, err
			}
		case fieldURL:
			if p.URL, err = d.readStringField(num, typ, "url"); err != nil {
				return share.Photo{}, err
			}
		case fieldAssetID:
			if p.AssetID, err = d.readStringField(num, typ, "asset id"); err != nil {
				return share.Photo{}, err
			}
		case fieldUserGenerated:
			if err := expectType(num, typ, protowire.VarintType); err != nil {
				return share.Photo{}, err
			}
			v, err := d.readVarint("user generated")
			if err != nil {
				return share.Photo{}, err
			}
			p.UserGenerated = protowire.DecodeBool(v)
		case fieldCaption:
			caption, err := d.readStringField(num, typ, "caption")
			if err != nil {
				return share.Photo{}, err
			}
			p.Caption = &caption
		default:
			if err := d.skip(num, typ); err != nil {
				return share.Photo{}, err
			}
		}
	}
}

type decoder struct {
	r             *bufio.Reader
	maxImageBytes int64
}

// readTag returns io.EOF only when the input ends cleanly between fields.
func (d *decoder) readTag() (protowire.Number, protowire.Type, error) {
	v, err := d.uvarint()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, 0, io.EOF
		}
		return 0, 0, d.wrap(err, "field tag")
	}
	num, typ := protowire.DecodeTag(v)
	if !num.IsValid() {
		return 0, 0, fmt.Errorf("%w: invalid field number %d", ErrSchemaMismatch, num)
	}
	return num, typ, nil
}

func (d *decoder) readVarint(field string) (uint64, error) {
	v, err := d.uvarint()
	if err != nil {
		return 0, d.wrap(err, field)
	}
	return v, nil
}

// uvarint reads one varint. It returns io.EOF if the input is already
// exhausted and io.ErrUnexpectedEOF if it ends inside the varint.
func (d *decoder) uvarint() (uint64, error) {
	peeked, peekErr := d.r.Peek(maxVarintLen)
	if len(peeked) == 0 {
		if peekErr == nil {
			peekErr = io.ErrNoProgress
		}
		return 0, peekErr
	}
	v, n := protowire.ConsumeVarint(peeked)
	if n < 0 {
		if peekErr != nil && !errors.Is(peekErr, io.EOF) {
			return 0, peekErr
		}
		err := protowire.ParseError(n)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if _, err := d.r.Discard(n); err != nil {
		return 0, err
	}
	return v, nil
}

func (d *decoder) readLength(field string, limit int64) (int64, error) {
	n, err := d.readVarint(field + " length")
	if err != nil {
		return 0, err
	}
	if n > uint64(limit) {
		return 0, fmt.Errorf("%w: %s declares %d bytes, max %d", ErrTooLarge, field, n, limit)
	}
	return int64(n), nil
}

// readBytes grows its buffer as data arrives, so a bogus length cannot force
// a large allocation up front.
func (d *decoder) readBytes(field string, limit int64) ([]byte, error) {
	n, err := d.readLength(field, limit)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Grow(int(min(n, DefaultChunkSize)))
	if _, err := io.CopyN(&buf, d.r, n); err != nil {
		return nil, d.wrap(err, field)
	}
	return buf.Bytes(), nil
}

func (d *decoder) readStringField(num protowire.Number, typ protowire.Type, field string) (string, error) {
	if err := expectType(num, typ, protowire.BytesType); err != nil {
		return "", err
	}
	raw, err := d.readBytes(field, MaxStringBytes)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// skip discards a field this version does not know about.
func (d *decoder) skip(num protowire.Number, typ protowire.Type) error {
	field := fmt.Sprintf("field %d", num)
	switch typ {
	case protowire.VarintType:
		_, err := d.readVarint(field)
		return err
	case protowire.Fixed32Type:
		return d.discard(field, 4)
	case protowire.Fixed64Type:
		return d.discard(field, 8)
	case protowire.BytesType:
		n, err := d.readLength(field, d.maxImageBytes)
		if err != nil {
			return err
		}
		return d.discard(field, n)
	default:
		return fmt.Errorf("%w: %s has unsupported wire type %d", ErrSchemaMismatch, field, typ)
	}
}

func (d *decoder) discard(field string, n int64) error {
	if _, err := io.CopyN(io.Discard, d.r, n); err != nil {
		return d.wrap(err, field)
	}
	return nil
}

func (d *decoder) wrap(err error, field string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, field)
	}
	if errors.Is(err, ErrSchemaMismatch) {
		return fmt.Errorf("%s: %w", field, err)
	}
	return fmt.Errorf("read %s: %w", field, err)
}

func expectType(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrSchemaMismatch, num, got, want)
	}
	return nil
}
