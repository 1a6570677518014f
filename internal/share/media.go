// Package share models media items to be shared to an external platform and
// checks that they are well-formed for a given sharing surface.
package share

import "context"

// MediaType classifies a shareable media item.
type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// Media is a shareable media item that can sit in a MediaContent collection.
type Media interface {
	MediaType() MediaType
}

// Validatable is implemented by values that can check themselves against a
// sharing context.
type Validatable interface {
	Validate(ctx Context) error
}

// AssetResolver turns a media library asset id into image data.
// Implementations live outside this package.
type AssetResolver interface {
	ResolveAsset(ctx context.Context, assetID string) ([]byte, error)
}

// Video is a video to share. It exists so photos and videos can be mixed in
// one ordered collection.
type Video struct {
	Data    []byte `json:"data,omitempty"`
	URL     string `json:"url,omitempty"`
	AssetID string `json:"asset_id,omitempty"`
	// Preview is an optional still shown before playback.
	Preview *Photo `json:"preview,omitempty"`
}

// MediaType implements Media.
func (v Video) MediaType() MediaType { return MediaTypeVideo }

// Validate implements Validatable using the default validator.
func (v Video) Validate(ctx Context) error {
	return defaultValidator.ValidateVideo(v, ctx)
}

func (v Video) sources() []SourceKind {
	kinds := make([]SourceKind, 0, 3)
	if len(v.Data) > 0 {
		kinds = append(kinds, SourceInMemory)
	}
	if v.URL != "" {
		kinds = append(kinds, SourceRemote)
	}
	if v.AssetID != "" {
		kinds = append(kinds, SourceAsset)
	}
	return kinds
}

// MediaContent is an ordered collection of media items shared together.
type MediaContent struct {
	Items   []Media `json:"-"`
	Hashtag string  `json:"hashtag,omitempty"`
}

// Validate checks the collection and every item in it.
// A nil validator means the default limits.
func (c MediaContent) Validate(v *Validator, ctx Context) error {
	if v == nil {
		v = defaultValidator
	}
	if err := validateHashtag(c.Hashtag); err != nil {
		return err
	}
	return v.ValidateItems(c.Items, ctx)
}
