package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/sharekit/internal/drafts"
	"github.com/memohai/sharekit/internal/logger"
	"github.com/memohai/sharekit/internal/media"
	"github.com/memohai/sharekit/internal/storage"
)

func (a *app) openLibrary(ctx context.Context) (*media.Library, error) {
	provider, err := storage.NewLocal(a.cfg.Library.Root)
	if err != nil {
		return nil, err
	}
	return media.NewLibrary(logger.FromContext(ctx), provider, a.cfg.Library.MaxBytes), nil
}

func (a *app) openDrafts(ctx context.Context) (*drafts.Store, error) {
	return drafts.Open(a.cfg.Drafts.Path, a.codec, logger.FromContext(ctx))
}

// storedAsset is the ingest output: the asset plus where its file lives.
type storedAsset struct {
	media.Asset
	Path string `json:"path,omitempty"`
}

func newLibraryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the local media library that backs asset ids",
	}

	var mime string
	ingest := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Store an image and print its asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			asset, err := lib.Ingest(cmd.Context(), f, mime)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), storedAsset{Asset: asset, Path: lib.AccessPath(asset)})
		},
	}
	ingest.Flags().StringVar(&mime, "mime", "", "declared MIME type (sniffed when empty)")

	var output string
	resolve := &cobra.Command{
		Use:   "resolve ASSET_ID",
		Short: "Write the image data of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			data, err := lib.ResolveAsset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return withOutput(cmd, output, func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			})
		},
	}
	resolve.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")

	remove := &cobra.Command{
		Use:   "delete ASSET_ID",
		Short: "Remove an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			return lib.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(ingest, resolve, remove)
	return cmd
}

func newDraftsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Park encoded photos in the draft store",
	}

	save := &cobra.Command{
		Use:   "save FILE",
		Short: "Store an encoded photo and print its draft id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := a.decodeFile(args[0])
			if err != nil {
				return err
			}
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			d, err := store.Save(cmd.Context(), photo)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), d.ID)
			return err
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			items, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), items)
		},
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a draft as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			d, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				ID        string    `json:"id"`
				CreatedAt string    `json:"created_at"`
				Photo     photoView `json:"photo"`
			}{ID: d.ID, CreatedAt: d.CreatedAt.Format(time.RFC3339), Photo: viewOf(d.Photo)})
		},
	}

	var output string
	export := &cobra.Command{
		Use:   "export ID",
		Short: "Write a draft back out in encoded form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			d, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return withOutput(cmd, output, func(w io.Writer) error {
				return a.codec.Encode(w, d.Photo)
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")

	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(save, list, show, export, remove)
	return cmd
}
