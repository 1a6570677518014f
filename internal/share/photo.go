package share

import (
	"bytes"
	"strings"
)

// SourceKind identifies where a photo's pixel data comes from.
type SourceKind string

const (
	SourceInMemory SourceKind = "in_memory"
	SourceRemote   SourceKind = "remote"
	SourceAsset    SourceKind = "asset"
)

// Photo describes a single photo to share.
//
// Exactly one of Image, URL and AssetID is expected to be set, but nothing
// here enforces it: the fields stay freely assignable so a photo can be built
// up incrementally, and the Validator decides whether the result is usable.
//
// Caption must be written by the user. Pre-filled captions violate platform
// policy; callers are responsible for provenance, only structure is checked.
type Photo struct {
	// Image is raw image data resident in memory.
	Image []byte `json:"image,omitempty"`
	// URL points to a network location or a file on disk.
	URL string `json:"url,omitempty"`
	// AssetID is an opaque media library identifier, resolved elsewhere.
	AssetID string `json:"asset_id,omitempty"`
	// UserGenerated reports whether the user, not the application, produced the photo.
	UserGenerated bool    `json:"user_generated"`
	Caption       *string `json:"caption,omitempty"`
}

// NewPhotoFromImage builds a photo backed by in-memory image data.
func NewPhotoFromImage(image []byte, userGenerated bool) Photo {
	if len(image) == 0 {
		panic("share: NewPhotoFromImage requires image data")
	}
	return Photo{Image: image, UserGenerated: userGenerated}
}

// NewPhotoFromURL builds a photo backed by a remote or on-disk URL.
//
// Use it only when embedding the photo in a linked-content story. To share a
// photo from the web on its own, download it and use NewPhotoFromImage.
func NewPhotoFromURL(uri string, userGenerated bool) Photo {
	if strings.TrimSpace(uri) == "" {
		panic("share: NewPhotoFromURL requires a url")
	}
	return Photo{URL: uri, UserGenerated: userGenerated}
}

// NewPhotoFromAsset builds a photo backed by a media library asset.
func NewPhotoFromAsset(assetID string, userGenerated bool) Photo {
	if strings.TrimSpace(assetID) == "" {
		panic("share: NewPhotoFromAsset requires an asset id")
	}
	return Photo{AssetID: assetID, UserGenerated: userGenerated}
}

// MediaType implements Media.
func (p Photo) MediaType() MediaType { return MediaTypePhoto }

// Validate implements Validatable using the default validator.
func (p Photo) Validate(ctx Context) error {
	return defaultValidator.ValidatePhoto(p, ctx)
}

// SetCaption sets the user-authored caption.
func (p *Photo) SetCaption(caption string) {
	p.Caption = &caption
}

// ClearCaption removes the caption.
func (p *Photo) ClearCaption() {
	p.Caption = nil
}

// CaptionText returns the caption and whether one is set.
func (p Photo) CaptionText() (string, bool) {
	if p.Caption == nil {
		return "", false
	}
	return *p.Caption, true
}

// Sources returns the populated sources in image, url, asset order.
func (p Photo) Sources() []SourceKind {
	kinds := make([]SourceKind, 0, 3)
	if len(p.Image) > 0 {
		kinds = append(kinds, SourceInMemory)
	}
	if p.URL != "" {
		kinds = append(kinds, SourceRemote)
	}
	if p.AssetID != "" {
		kinds = append(kinds, SourceAsset)
	}
	return kinds
}

// Equal reports whether both photos carry the same values.
func (p Photo) Equal(other Photo) bool {
	if p.UserGenerated != other.UserGenerated ||
		p.URL != other.URL ||
		p.AssetID != other.AssetID {
		return false
	}
	if !bytes.Equal(p.Image, other.Image) {
		return false
	}
	if (p.Caption == nil) != (other.Caption == nil) {
		return false
	}
	return p.Caption == nil || *p.Caption == *other.Caption
}
