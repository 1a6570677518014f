// Package media is a content-addressed photo library. It is the collaborator
// that turns share asset ids back into image data.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/memohai/sharekit/internal/attachment"
	"github.com/memohai/sharekit/internal/share"
	"github.com/memohai/sharekit/internal/storage"
)

// Library persists photos by content hash.
// All metadata is derived from the storage key: no database, no sidecar files.
type Library struct {
	provider storage.Provider
	maxBytes int64
	logger   *slog.Logger
}

var _ share.AssetResolver = (*Library)(nil)

// NewLibrary creates a library on the given storage provider.
// Non-positive maxBytes means MaxAssetBytes.
func NewLibrary(log *slog.Logger, provider storage.Provider, maxBytes int64) *Library {
	if log == nil {
		log = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = MaxAssetBytes
	}
	return &Library{
		provider: provider,
		maxBytes: maxBytes,
		logger:   log.With(slog.String("service", "media")),
	}
}

// Ingest stores image data read from reader. It hashes the content,
// deduplicates against what is already stored, and returns the Asset.
// An empty mime is sniffed from the content.
func (l *Library) Ingest(ctx context.Context, reader io.Reader, mime string) (Asset, error) {
	if l.provider == nil {
		return Asset{}, ErrProviderUnavailable
	}
	if reader == nil {
		return Asset{}, fmt.Errorf("reader is required")
	}
	reader, mime, err := attachment.PrepareReaderAndMime(reader, mime)
	if err != nil {
		return Asset{}, err
	}
	contentHash, sizeBytes, tempPath, err := spoolAndHashWithLimit(reader, l.maxBytes)
	if err != nil {
		return Asset{}, fmt.Errorf("read input: %w", err)
	}
	defer func() {
		_ = os.Remove(tempPath)
	}()

	asset := Asset{
		ID:         contentHash,
		Mime:       mime,
		SizeBytes:  sizeBytes,
		StorageKey: path.Join(contentHash[:2], contentHash+extensionFromMime(mime)),
	}

	if rc, openErr := l.provider.Open(ctx, asset.StorageKey); openErr == nil {
		_ = rc.Close()
		l.logger.Debug("asset already stored", slog.String("id", asset.ID))
		return asset, nil
	}

	tempFile, err := os.Open(tempPath)
	if err != nil {
		return Asset{}, fmt.Errorf("open temp file: %w", err)
	}
	defer func() {
		_ = tempFile.Close()
	}()
	if err := l.provider.Put(ctx, asset.StorageKey, tempFile); err != nil {
		return Asset{}, fmt.Errorf("store media: %w", err)
	}
	l.logger.Info("asset stored",
		slog.String("id", asset.ID),
		slog.String("mime", asset.Mime),
		slog.Int64("size_bytes", asset.SizeBytes))
	return asset, nil
}

// Stat finds an asset by id without reading its data.
func (l *Library) Stat(ctx context.Context, id string) (Asset, error) {
	if l.provider == nil {
		return Asset{}, ErrProviderUnavailable
	}
	return l.resolveByContentHash(ctx, id)
}

// ResolveAsset returns the image data for id. It implements share.AssetResolver.
func (l *Library) ResolveAsset(ctx context.Context, id string) ([]byte, error) {
	rc, asset, err := l.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := attachment.ReadBounded(rc, l.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", asset.ID, err)
	}
	return data, nil
}

// Open returns a reader for the asset identified by id.
func (l *Library) Open(ctx context.Context, id string) (io.ReadCloser, Asset, error) {
	if l.provider == nil {
		return nil, Asset{}, ErrProviderUnavailable
	}
	asset, err := l.resolveByContentHash(ctx, id)
	if err != nil {
		return nil, Asset{}, err
	}
	reader, err := l.provider.Open(ctx, asset.StorageKey)
	if err != nil {
		return nil, Asset{}, fmt.Errorf("open storage: %w", err)
	}
	return reader, asset, nil
}

// Delete removes the asset. Unknown ids report ErrAssetNotFound.
func (l *Library) Delete(ctx context.Context, id string) error {
	asset, err := l.Stat(ctx, id)
	if err != nil {
		return err
	}
	return l.provider.Delete(ctx, asset.StorageKey)
}

// AccessPath returns a consumer-accessible reference for a stored asset.
func (l *Library) AccessPath(asset Asset) string {
	if l.provider == nil {
		return ""
	}
	return l.provider.AccessPath(asset.StorageKey)
}

// Materialize returns a copy of p with its asset resolved into in-memory
// image data, for surfaces that cannot take library assets. Photos without an
// asset id are returned unchanged.
func Materialize(ctx context.Context, resolver share.AssetResolver, p share.Photo) (share.Photo, error) {
	if p.AssetID == "" {
		return p, nil
	}
	if resolver == nil {
		return share.Photo{}, ErrProviderUnavailable
	}
	data, err := resolver.ResolveAsset(ctx, p.AssetID)
	if err != nil {
		return share.Photo{}, fmt.Errorf("resolve asset %s: %w", p.AssetID, err)
	}
	if len(data) == 0 {
		return share.Photo{}, fmt.Errorf("resolve asset %s: %w", p.AssetID, ErrAssetNotFound)
	}
	out := p
	out.Image = data
	out.AssetID = ""
	return out, nil
}

// resolveByContentHash scans hash-prefix directory by extension to find the file.
func (l *Library) resolveByContentHash(ctx context.Context, id string) (Asset, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !isContentHash(id) {
		return Asset{}, ErrAssetNotFound
	}
	prefix := id[:2]
	for _, ext := range knownExtensions {
		storageKey := path.Join(prefix, id+ext)
		rc, err := l.provider.Open(ctx, storageKey)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Asset{}, err
			}
			continue
		}
		_ = rc.Close()
		return deriveAssetFromKey(storageKey), nil
	}
	return Asset{}, ErrAssetNotFound
}

func isContentHash(id string) bool {
	if len(id) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// deriveAssetFromKey builds an Asset from the storage key (hash_2char_prefix/hash.ext).
func deriveAssetFromKey(storageKey string) Asset {
	base := path.Base(storageKey)
	ext := path.Ext(base)
	return Asset{
		ID:         strings.TrimSuffix(base, ext),
		Mime:       mimeFromExtension(ext),
		StorageKey: storageKey,
	}
}

var knownExtensions = []string{".jpg", ".png", ".gif", ".webp", ".heic", ".bmp", ".tiff", ".bin"}

func mimeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".bmp":
		return "image/bmp"
	case ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func extensionFromMime(mime string) string {
	switch attachment.NormalizeMime(mime) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		return ".bin"
	}
}

func spoolAndHashWithLimit(reader io.Reader, maxBytes int64) (string, int64, string, error) {
	if maxBytes <= 0 {
		return "", 0, "", fmt.Errorf("max bytes must be greater than 0")
	}
	tempFile, err := os.CreateTemp("", "sharekit-media-*")
	if err != nil {
		return "", 0, "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	keepFile := false
	defer func() {
		_ = tempFile.Close()
		if !keepFile {
			_ = os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	limited := &io.LimitedReader{R: reader, N: maxBytes + 1}
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), limited)
	if err != nil {
		return "", 0, "", fmt.Errorf("copy to temp file: %w", err)
	}
	if written > maxBytes {
		return "", 0, "", fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, maxBytes)
	}
	if written == 0 {
		return "", 0, "", fmt.Errorf("asset payload is empty")
	}
	keepFile = true
	return hex.EncodeToString(hasher.Sum(nil)), written, tempPath, nil
}
