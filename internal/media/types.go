package media

import "errors"

// MaxAssetBytes is the default size limit for ingested assets.
const MaxAssetBytes int64 = 32 << 20

var (
	ErrProviderUnavailable = errors.New("media storage provider not configured")
	ErrAssetNotFound       = errors.New("media asset not found")
	ErrAssetTooLarge       = errors.New("media asset too large")
)

// Asset is a photo stored in the library.
// ID is the content-addressed identifier (SHA-256 hex) used as a share asset id.
type Asset struct {
	ID         string `json:"id"`
	Mime       string `json:"mime"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	StorageKey string `json:"storage_key"`
}
