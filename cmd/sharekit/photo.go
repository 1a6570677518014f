package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memohai/sharekit/internal/attachment"
	"github.com/memohai/sharekit/internal/logger"
	"github.com/memohai/sharekit/internal/media"
	"github.com/memohai/sharekit/internal/share"
)

// photoView is the JSON shape printed for a decoded photo.
type photoView struct {
	Sources       []share.SourceKind `json:"sources"`
	ImageBytes    int                `json:"image_bytes,omitempty"`
	ImageMime     string             `json:"image_mime,omitempty"`
	ImageSHA256   string             `json:"image_sha256,omitempty"`
	ImageDataURL  string             `json:"image_data_url,omitempty"`
	URL           string             `json:"url,omitempty"`
	AssetID       string             `json:"asset_id,omitempty"`
	UserGenerated bool               `json:"user_generated"`
	Caption       *string            `json:"caption,omitempty"`
}

func viewOf(p share.Photo) photoView {
	v := photoView{
		Sources:       p.Sources(),
		URL:           p.URL,
		AssetID:       p.AssetID,
		UserGenerated: p.UserGenerated,
		Caption:       p.Caption,
	}
	if len(p.Image) > 0 {
		sum := sha256.Sum256(p.Image)
		v.ImageBytes = len(p.Image)
		v.ImageMime = attachment.DetectImageMime(p.Image, "")
		v.ImageSHA256 = hex.EncodeToString(sum[:])
	}
	return v
}

type encodeOptions struct {
	imagePath    string
	imageBase64  string
	url          string
	asset        string
	caption      string
	appGenerated bool
	output       string
}

func newEncodeCommand(a *app) *cobra.Command {
	opts := &encodeOptions{}
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a photo description for hand-off",
		Long: `Encode a photo from an image file, base64 data, a URL or a library asset id.

Several sources may be given; the result is encoded as is and fails
validation later. Captions must be written by the user: pre-filled
captions violate platform policy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			photo, err := a.buildPhoto(cmd, opts)
			if err != nil {
				return err
			}
			ctx, err := a.cfg.Share.Context()
			if err != nil {
				return err
			}
			if err := a.cfg.Share.Validator().ValidatePhoto(photo, ctx); err != nil {
				logger.FromContext(cmd.Context()).Warn("encoded photo does not validate", slog.String("surface", string(ctx.Surface)), slog.Any("error", err))
			}
			return withOutput(cmd, opts.output, func(w io.Writer) error {
				return a.codec.Encode(w, photo)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.imagePath, "image", "", "image file to embed")
	flags.StringVar(&opts.imageBase64, "image-base64", "", "image as raw base64 or a data URL")
	flags.StringVar(&opts.url, "url", "", "remote or file URL of the image")
	flags.StringVar(&opts.asset, "asset", "", "media library asset id")
	flags.StringVar(&opts.caption, "caption", "", "user-authored caption")
	flags.BoolVar(&opts.appGenerated, "app-generated", false, "mark the photo as produced by the application")
	flags.StringVarP(&opts.output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func (a *app) buildPhoto(cmd *cobra.Command, opts *encodeOptions) (share.Photo, error) {
	photo := share.Photo{UserGenerated: !opts.appGenerated}
	maxBytes := a.codec.MaxImageBytes()
	declared := ""
	switch {
	case opts.imagePath != "" && opts.imageBase64 != "":
		return share.Photo{}, errors.New("--image and --image-base64 are mutually exclusive")
	case opts.imagePath != "":
		f, err := os.Open(opts.imagePath)
		if err != nil {
			return share.Photo{}, err
		}
		defer f.Close()
		if photo.Image, err = attachment.ReadBounded(f, maxBytes); err != nil {
			return share.Photo{}, fmt.Errorf("read %s: %w", opts.imagePath, err)
		}
	case opts.imageBase64 != "":
		r, err := attachment.DecodeBase64(opts.imageBase64, maxBytes)
		if err != nil {
			return share.Photo{}, err
		}
		if photo.Image, err = attachment.ReadBounded(r, maxBytes); err != nil {
			return share.Photo{}, fmt.Errorf("decode base64 image: %w", err)
		}
		declared = attachment.MimeFromDataURL(opts.imageBase64)
	}
	if len(photo.Image) > 0 {
		if mime := attachment.DetectImageMime(photo.Image, declared); !strings.HasPrefix(mime, "image/") {
			logger.FromContext(cmd.Context()).Warn("image data does not look like an image", slog.String("mime", mime))
		}
	}
	photo.URL = opts.url
	photo.AssetID = opts.asset
	if cmd.Flags().Changed("caption") {
		photo.SetCaption(opts.caption)
	}
	return photo, nil
}

func newDecodeCommand(a *app) *cobra.Command {
	var dataURL bool
	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Decode an encoded photo and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := a.decodeFile(args[0])
			if err != nil {
				return err
			}
			view := viewOf(photo)
			if dataURL && len(photo.Image) > 0 {
				view.ImageDataURL = attachment.DataURL(photo.Image, view.ImageMime)
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().BoolVar(&dataURL, "data-url", false, "include the image as a base64 data URL")
	return cmd
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		surface     string
		materialize bool
		hashtag     string
	)
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate encoded photos as one shared collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shareCfg := a.cfg.Share
			if surface != "" {
				shareCfg.Surface = surface
			}
			ctx, err := shareCfg.Context()
			if err != nil {
				return err
			}
			var lib *media.Library
			if materialize {
				if lib, err = a.openLibrary(cmd.Context()); err != nil {
					return err
				}
			}
			content := share.MediaContent{Hashtag: hashtag}
			for _, path := range args {
				photo, err := a.decodeFile(path)
				if err != nil {
					return err
				}
				if lib != nil {
					if photo, err = media.Materialize(cmd.Context(), lib, photo); err != nil {
						return err
					}
				}
				content.Items = append(content.Items, photo)
			}
			if err := content.Validate(shareCfg.Validator(), ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d item(s) valid for %s\n", len(content.Items), ctx.Surface)
			return err
		},
	}
	cmd.Flags().StringVar(&surface, "surface", "", "share surface: share_sheet, api or story (default from config)")
	cmd.Flags().BoolVar(&materialize, "materialize", false, "resolve library assets into image data before validating")
	cmd.Flags().StringVar(&hashtag, "hashtag", "", "hashtag attached to the share")
	return cmd
}

func (a *app) decodeFile(path string) (share.Photo, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return share.Photo{}, err
		}
		defer f.Close()
		r = f
	}
	photo, err := a.codec.Decode(r)
	if err != nil {
		return share.Photo{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return photo, nil
}

func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
