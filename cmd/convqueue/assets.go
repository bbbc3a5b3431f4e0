package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bnema/convqueue/config"
	"github.com/bnema/convqueue/internal/adapter/converter/ffmpeg"
	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/infrastructure/logger"
	"github.com/bnema/convqueue/internal/infrastructure/validation"
)

type assetOptions struct {
	galleryID int64
	albumID   int64
	title     string
	tags      []string
	rotate    string
	probe     bool
}

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage the media assets conversions run against",
	}
	cmd.AddCommand(newAssetsAddCommand(ctx))
	return cmd
}

func newAssetsAddCommand(ctx *commandContext) *cobra.Command {
	opts := assetOptions{probe: true}

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Register a media file as an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			asset, err := buildAsset(cmd.Context(), cfg, args[0], opts)
			if err != nil {
				return err
			}

			save := func(st *stores) error {
				return st.assets.Create(cmd.Context(), asset)
			}
			if cfg.Store.Driver == "json" {
				// The json document is rewritten whole, so it cannot be shared
				// with a running daemon.
				err = withExclusiveStore(cfg, save)
			} else {
				err = withStores(cfg, save)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Asset %d: %s (%s, %s)\n",
				asset.ID, asset.Title, asset.Type, humanize.Bytes(uint64(asset.Original.FileSize)))
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.galleryID, "gallery", 1, "Gallery the asset belongs to")
	cmd.Flags().Int64Var(&opts.albumID, "album", 0, "Album the asset belongs to")
	cmd.Flags().StringVar(&opts.title, "title", "", "Title (default: file name)")
	cmd.Flags().StringSliceVar(&opts.tags, "tags", nil, "Comma separated tags")
	cmd.Flags().StringVar(&opts.rotate, "rotate", "", "Pending orientation fix: rotate90, rotate180, rotate270, flipx or flipy")
	cmd.Flags().BoolVar(&opts.probe, "probe", true, "Read video dimensions with ffprobe")
	return cmd
}

func buildAsset(ctx context.Context, cfg *config.Config, path string, opts assetOptions) (*domain.Asset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}

	rotate := domain.RotateFlip(strings.ToLower(opts.rotate))
	if !rotate.Valid() {
		return nil, fmt.Errorf("unknown --rotate value %q", opts.rotate)
	}

	_, mediaType, err := validation.ClassifyFile(abs)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", abs, err)
	}

	asset := domain.NewAsset(opts.galleryID, opts.albumID, abs)
	asset.Type = mediaType
	asset.Original.FileSize = info.Size()
	asset.RotateFlip = rotate
	if opts.title != "" {
		asset.Title = opts.title
	}
	for _, tag := range opts.tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			asset.Tags = append(asset.Tags, tag)
		}
	}

	if opts.probe && mediaType == domain.MediaTypeVideo {
		probeDimensions(ctx, cfg, asset)
	}
	return asset, nil
}

// probeDimensions fills in the asset size from ffprobe. Failures only cost
// the dimensions, the queue falls back to its own probe or defaults.
func probeDimensions(ctx context.Context, cfg *config.Config, asset *domain.Asset) {
	executor := ffmpeg.NewExecutor(cfg.FFmpeg.Path, cfg.FFprobe.Path)
	result, err := executor.Probe(ctx, asset.Original.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", logger.SanitizeForLog(asset.Original.Path)).Msg("probe failed")
		return
	}
	w, h := result.Dimensions()
	asset.Width, asset.Height = w, h
	asset.Original.Width, asset.Original.Height = w, h
}
