package codec

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/memohai/sharekit/internal/share"
)

func captioned(p share.Photo, caption string) share.Photo {
	p.SetCaption(caption)
	return p
}

func TestRoundTrip(t *testing.T) {
	multi := share.NewPhotoFromImage([]byte{1, 2, 3}, true)
	multi.URL = "https://example.com/a.jpg"
	multi.AssetID = "asset-1"

	cases := []struct {
		name  string
		photo share.Photo
	}{
		{name: "image", photo: share.NewPhotoFromImage([]byte("\x89PNG\r\n\x1a\n"), true)},
		{name: "url app generated", photo: share.NewPhotoFromURL("https://example.com/a.jpg", false)},
		{name: "asset with caption", photo: captioned(share.NewPhotoFromAsset("ph://1", true), "beach")},
		{name: "empty caption", photo: captioned(share.NewPhotoFromAsset("ph://1", true), "")},
		{name: "unicode caption", photo: captioned(share.NewPhotoFromURL("file:///tmp/x.jpg", true), "夕焼け 🌅")},
		{name: "multiple sources", photo: multi},
		{name: "no source", photo: share.Photo{}},
	}
	c := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := c.Marshal(tc.photo)
			require.NoError(t, err)
			got, err := c.Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, tc.photo.Equal(got), "got %+v", got)
		})
	}
}

func TestRoundTripLargeImage(t *testing.T) {
	image := make([]byte, 5<<20)
	_, err := rand.Read(image)
	require.NoError(t, err)
	photo := captioned(share.NewPhotoFromImage(image, true), "big one")

	c := New()
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, photo))
	got, err := c.Decode(&buf)
	require.NoError(t, err)

	require.True(t, bytes.Equal(image, got.Image), "image data differs")
	assert.Empty(t, got.URL)
	assert.Empty(t, got.AssetID)
	assert.True(t, got.UserGenerated)
	text, ok := got.CaptionText()
	require.True(t, ok)
	assert.Equal(t, "big one", text)
	assert.True(t, photo.Equal(got))
}

type countingWriter struct {
	writes  int
	largest int
	buf     bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	w.largest = max(w.largest, len(p))
	return w.buf.Write(p)
}

func TestEncodeStreamsImageInChunks(t *testing.T) {
	image := bytes.Repeat([]byte{7}, 10_000)
	c := New(WithChunkSize(1024))
	w := &countingWriter{}
	require.NoError(t, c.Encode(w, share.NewPhotoFromImage(image, true)))
	assert.LessOrEqual(t, w.largest, 1024)
	assert.GreaterOrEqual(t, w.writes, 10)

	got, err := c.Unmarshal(w.buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image, got.Image)
}

func TestEncodeOmitsAbsentImage(t *testing.T) {
	data, err := New().Marshal(share.NewPhotoFromURL("https://example.com/a.jpg", true))
	require.NoError(t, err)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeField(data)
		require.GreaterOrEqual(t, n, 0)
		assert.NotEqual(t, fieldImage, num)
		_ = typ
		data = data[n:]
	}

	withEmpty := share.NewPhotoFromURL("https://example.com/a.jpg", true)
	withEmpty.Image = []byte{}
	a, err := New().Marshal(withEmpty)
	require.NoError(t, err)
	b, err := New().Marshal(share.NewPhotoFromURL("https://example.com/a.jpg", true))
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestDecodeTruncated(t *testing.T) {
	photo := captioned(share.NewPhotoFromImage(bytes.Repeat([]byte{1}, 300), false), "caption")
	photo.URL = "https://example.com/a.jpg"
	data, err := New().Marshal(photo)
	require.NoError(t, err)

	// Prefixes ending between two fields are truncated as well.
	for i := 0; i < len(data); i++ {
		_, err := New().Unmarshal(data[:i])
		assert.ErrorIs(t, err, ErrTruncated, "prefix %d", i)
	}
	got, err := New().Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, photo.Equal(got))
}

func TestDecodeTruncatedAfterImageKeepsFlag(t *testing.T) {
	photo := captioned(share.NewPhotoFromImage(make([]byte, 1000), false), "mine")
	data, err := New().Marshal(photo)
	require.NoError(t, err)

	// version field plus the complete image field
	cut := 2 + 1 + protowire.SizeVarint(1000) + 1000
	got, err := New().Unmarshal(data[:cut])
	assert.ErrorIs(t, err, ErrTruncated)
	assert.False(t, got.UserGenerated)
	assert.Empty(t, got.Sources())
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	data, err := New().Marshal(share.NewPhotoFromURL("https://example.com/a.jpg", true))
	require.NoError(t, err)
	_, err = New().Unmarshal(append(data, 0x08, 0x01))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func endRecord(data []byte) []byte {
	data = protowire.AppendTag(data, fieldEnd, protowire.VarintType)
	return protowire.AppendVarint(data, 0)
}

func TestDecodeSchemaMismatch(t *testing.T) {
	versionTwo := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	versionTwo = protowire.AppendVarint(versionTwo, 2)

	noVersion := protowire.AppendTag(nil, fieldURL, protowire.BytesType)
	noVersion = protowire.AppendString(noVersion, "https://example.com/a.jpg")

	wrongType := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, SchemaVersion)
	wrongType = protowire.AppendTag(wrongType, fieldURL, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 1)
	wrongType = endRecord(wrongType)

	repeated := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	repeated = protowire.AppendVarint(repeated, SchemaVersion)
	repeated = protowire.AppendTag(repeated, fieldVersion, protowire.VarintType)
	repeated = protowire.AppendVarint(repeated, SchemaVersion)
	repeated = endRecord(repeated)

	badEnd := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	badEnd = protowire.AppendVarint(badEnd, SchemaVersion)
	badEnd = protowire.AppendTag(badEnd, fieldEnd, protowire.BytesType)
	badEnd = protowire.AppendString(badEnd, "x")

	cases := map[string][]byte{
		"version two":     versionTwo,
		"missing version": noVersion,
		"wrong wire type": wrongType,
		"repeated":        repeated,
		"end wrong type":  badEnd,
		"garbage":         bytes.Repeat([]byte{0xff}, 12),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New().Unmarshal(data)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	_, err := New().Unmarshal(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	data := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	data = protowire.AppendVarint(data, SchemaVersion)
	data = protowire.AppendTag(data, 42, protowire.BytesType)
	data = protowire.AppendString(data, "future")
	data = protowire.AppendTag(data, 43, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 99)
	data = protowire.AppendTag(data, fieldAssetID, protowire.BytesType)
	data = protowire.AppendString(data, "asset-9")
	data = protowire.AppendTag(data, fieldUserGenerated, protowire.VarintType)
	data = protowire.AppendVarint(data, 0)
	data = endRecord(data)

	got, err := New().Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, share.NewPhotoFromAsset("asset-9", false).Equal(got))
}

func TestDecodeDefaultsUserGenerated(t *testing.T) {
	data := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	data = protowire.AppendVarint(data, SchemaVersion)
	got, err := New().Unmarshal(endRecord(data))
	require.NoError(t, err)
	assert.True(t, got.UserGenerated)
	assert.Empty(t, got.Sources())
}

func TestSizeLimits(t *testing.T) {
	small := New(WithMaxImageBytes(16))
	err := small.Encode(&bytes.Buffer{}, share.NewPhotoFromImage(make([]byte, 17), true))
	assert.ErrorIs(t, err, ErrTooLarge)

	data, err := New().Marshal(share.NewPhotoFromImage(make([]byte, 17), true))
	require.NoError(t, err)
	_, err = small.Unmarshal(data)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = New().Marshal(share.NewPhotoFromURL(string(bytes.Repeat([]byte("a"), MaxStringBytes+1)), true))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, int64(16), small.MaxImageBytes())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeWriteError(t *testing.T) {
	err := New().Encode(failingWriter{}, share.NewPhotoFromImage([]byte{1}, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
