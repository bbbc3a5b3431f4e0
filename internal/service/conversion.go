package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/infrastructure/metrics"
	"github.com/bnema/convqueue/internal/infrastructure/validation"
)

var errNoRotationNeeded = errors.New("no rotation needed")

const (
	optimizedSuffix = "_opt"
	rotatedSuffix   = "_rotated_"
)

// executeConversion reloads the asset and runs the conversion the item asks
// for. The returned asset carries the item's rotate/flip amount.
func (q *ConversionQueue) executeConversion(ctx context.Context, item *domain.QueueItem) (*domain.Asset, *domain.ConversionResult, error) {
	asset, err := q.assets.Get(ctx, item.AssetID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("asset %d: %w", item.AssetID, domain.ErrAssetVanished)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load asset %d: %w", item.AssetID, err)
	}
	asset.RotateFlip = item.RotateFlip

	switch item.ConversionType {
	case domain.ConversionRotateVideo:
		result, err := q.rotateVideo(ctx, item, asset)
		return asset, result, err
	case domain.ConversionCreateOptimized:
		result, err := q.createOptimized(ctx, item, asset)
		return asset, result, err
	default:
		return asset, nil, fmt.Errorf("unsupported conversion type %q", item.ConversionType)
	}
}

// createOptimized tries each matching encoder setting in sequence order until
// one produces a file, the item is canceled or the settings run out.
func (q *ConversionQueue) createOptimized(ctx context.Context, item *domain.QueueItem, asset *domain.Asset) (*domain.ConversionResult, error) {
	gs := q.settings.GallerySettings(asset.GalleryID)
	width, height := q.targetDimensions(ctx, item.ID, asset)

	var last *domain.ConversionResult
	for {
		candidates := domain.ResolveEncoderSettings(asset.Type, asset.Original.Filename(), gs.EncoderSettings, q.attemptedSnapshot())
		if len(candidates) == 0 {
			if last == nil {
				q.appendDetail(item.ID, fmt.Sprintf("No encoder settings match %s.", asset.Original.Filename()))
				return nil, domain.ErrNoEncoderSettings
			}
			return last, nil
		}

		setting := candidates[0]
		if strings.TrimSpace(setting.Arguments) == "" {
			q.markAttempted(setting.Sequence)
			q.appendDetail(item.ID, fmt.Sprintf("Skipping encoder setting %s: no arguments.", setting))
			continue
		}

		result := q.attemptSetting(ctx, item, asset, setting, gs.TimeoutFor(setting), width, height)
		last = result
		if result.FileCreated || result.CancellationRequested {
			return result, nil
		}

		q.markAttempted(setting.Sequence)
		q.appendDetail(item.ID, fmt.Sprintf("Encoder setting %s did not produce a file.", setting))
	}
}

func (q *ConversionQueue) attemptSetting(
	ctx context.Context,
	item *domain.QueueItem,
	asset *domain.Asset,
	setting domain.EncoderSetting,
	timeout time.Duration,
	width, height int,
) *domain.ConversionResult {
	stable := filepath.Join(asset.Dir(), validation.RenditionFilename(asset.BaseName(), optimizedSuffix, setting.DestinationExt))
	dest := stable
	if _, err := os.Stat(stable); err == nil || stable == asset.Original.Path {
		dest = filepath.Join(asset.Dir(), validation.RenditionFilename(asset.BaseName(), optimizedSuffix+"_"+shortID(), setting.DestinationExt))
	}
	q.setNewFilename(item.ID, filepath.Base(stable))

	values := domain.ArgumentValues{
		SourcePath:      asset.Original.Path,
		DestinationPath: dest,
		Width:           width,
		Height:          height,
		RotateFlip:      asset.RotateFlip,
	}
	s := setting
	result := &domain.ConversionResult{
		SourcePath:      asset.Original.Path,
		DestinationPath: dest,
		EncoderSetting:  &s,
		Width:           width,
		Height:          height,
	}

	args, err := domain.RenderArguments(setting.Arguments, values)
	if err != nil {
		q.log.Warn().Err(err).Int64("item_id", item.ID).Int("sequence", setting.Sequence).Msg("encoder setting has invalid arguments")
		q.appendDetail(item.ID, fmt.Sprintf("Encoder setting %s has invalid arguments: %v", setting, err))
		metrics.RecordEncoderAttempt("failure")
		return result
	}
	q.appendDetail(item.ID, fmt.Sprintf("Converting with encoder setting %s: ffmpeg %s", setting, domain.JoinArguments(args)))

	q.runTool(ctx, item.ID, result, args, timeout)
	return result
}

// rotateVideo rewrites the original file with the item's rotation applied.
func (q *ConversionQueue) rotateVideo(ctx context.Context, item *domain.QueueItem, asset *domain.Asset) (*domain.ConversionResult, error) {
	if asset.RotateFlip == domain.RotateNone {
		return nil, errNoRotationNeeded
	}

	ext := filepath.Ext(asset.Original.Path)
	dest := filepath.Join(asset.Dir(), validation.RenditionFilename(asset.BaseName(), rotatedSuffix+shortID(), ext))
	q.setNewFilename(item.ID, asset.Original.Filename())

	width, height := asset.Original.Width, asset.Original.Height
	if asset.RotateFlip.SwapsDimensions() {
		width, height = height, width
	}
	values := domain.ArgumentValues{
		SourcePath:      asset.Original.Path,
		DestinationPath: dest,
		Width:           width,
		Height:          height,
		RotateFlip:      asset.RotateFlip,
	}
	args, err := domain.RenderArguments(domain.RotateVideoArguments, values)
	if err != nil {
		return nil, err
	}
	q.appendDetail(item.ID, fmt.Sprintf("Rotating video (%s): ffmpeg %s", asset.RotateFlip, domain.JoinArguments(args)))

	result := &domain.ConversionResult{
		SourcePath:      asset.Original.Path,
		DestinationPath: dest,
		Width:           width,
		Height:          height,
	}
	gs := q.settings.GallerySettings(asset.GalleryID)
	q.runTool(ctx, item.ID, result, args, gs.ConversionTimeout)
	return result, nil
}

// runTool invokes the executor and validates the destination file.
func (q *ConversionQueue) runTool(ctx context.Context, itemID int64, result *domain.ConversionResult, args []string, timeout time.Duration) {
	req := domain.ConversionRequest{
		SourcePath:      result.SourcePath,
		DestinationPath: result.DestinationPath,
		Arguments:       args,
	}
	output, err := q.executor.Execute(ctx, req, timeout)
	result.ToolOutput = output

	if ctx.Err() != nil {
		result.CancellationRequested = true
		metrics.RecordEncoderAttempt("canceled")
		return
	}

	q.validateOutput(result)
	if w, h, ok := domain.ParseOutputDimensions(output); ok {
		result.Width, result.Height = w, h
	}

	if result.FileCreated {
		metrics.RecordEncoderAttempt("success")
		return
	}
	metrics.RecordEncoderAttempt("failure")
	if err != nil {
		q.appendDetail(itemID, fmt.Sprintf("Encoding tool failed: %v", err))
	}
}

// validateOutput marks the result as created only for a non-empty file. An
// empty file is deleted.
func (q *ConversionQueue) validateOutput(result *domain.ConversionResult) {
	info, err := os.Stat(result.DestinationPath)
	if err != nil || info.IsDir() {
		result.FileCreated = false
		return
	}
	if info.Size() == 0 {
		_ = os.Remove(result.DestinationPath)
		result.FileCreated = false
		return
	}
	result.FileCreated = true
	result.FileSize = info.Size()
}

// targetDimensions picks the output size: asset metadata first, then a probe
// of the original for videos, then the type default. Rotation by a quarter
// turn swaps the pair.
func (q *ConversionQueue) targetDimensions(ctx context.Context, itemID int64, asset *domain.Asset) (int, int) {
	width, height := asset.Width, asset.Height

	if (width <= 0 || height <= 0) && asset.Type == domain.MediaTypeVideo {
		probe, err := q.executor.Probe(ctx, asset.Original.Path)
		if err != nil {
			q.log.Debug().Err(err).Int64("asset_id", asset.ID).Msg("probe failed, using default dimensions")
		} else {
			width, height = probe.Dimensions()
		}
	}

	if width <= 0 || height <= 0 {
		width, height = asset.DefaultDimensions()
		q.appendDetail(itemID, fmt.Sprintf("Using default dimensions %dx%d.", width, height))
	}

	if asset.RotateFlip.SwapsDimensions() {
		width, height = height, width
	}
	return width, height
}

// applyResult moves the produced file into place and saves the asset. It
// returns the final file name.
func (q *ConversionQueue) applyResult(ctx context.Context, item *domain.QueueItem, asset *domain.Asset, result *domain.ConversionResult) (string, error) {
	switch item.ConversionType {
	case domain.ConversionRotateVideo:
		if err := replaceFile(result.DestinationPath, asset.Original.Path); err != nil {
			return "", fmt.Errorf("replace original: %w", err)
		}
		asset.Original.FileSize = result.FileSize
		asset.Original.Width, asset.Original.Height = result.Width, result.Height
		if asset.RotateFlip.SwapsDimensions() && asset.Width > 0 && asset.Height > 0 {
			asset.Width, asset.Height = asset.Height, asset.Width
		}
		asset.RotateFlip = domain.RotateNone

	case domain.ConversionCreateOptimized:
		stable := filepath.Join(asset.Dir(), validation.RenditionFilename(asset.BaseName(), optimizedSuffix, filepath.Ext(result.DestinationPath)))
		if result.DestinationPath != stable {
			if err := replaceFile(result.DestinationPath, stable); err != nil {
				return "", fmt.Errorf("rename optimized file: %w", err)
			}
		}
		if prior := asset.Optimized; prior != nil && prior.Path != "" && prior.Path != stable && prior.Path != asset.Original.Path {
			if err := os.Remove(prior.Path); err != nil && !os.IsNotExist(err) {
				q.log.Warn().Err(err).Str("path", prior.Path).Msg("failed to remove previous rendition")
			}
		}
		asset.Optimized = &domain.Rendition{
			Path:     stable,
			FileSize: result.FileSize,
			Width:    result.Width,
			Height:   result.Height,
		}
	}

	if err := q.assets.Save(context.WithoutCancel(ctx), asset); err != nil {
		return "", fmt.Errorf("save asset %d: %w", asset.ID, err)
	}

	filename := asset.Original.Filename()
	if item.ConversionType == domain.ConversionCreateOptimized {
		filename = asset.Optimized.Filename()
	}
	q.setNewFilename(item.ID, filename)
	q.log.Debug().
		Int64("asset_id", asset.ID).
		Str("file", filename).
		Str("size", humanize.Bytes(uint64(result.FileSize))).
		Msg("asset updated")
	return filename, nil
}

func replaceFile(src, dst string) error {
	if src == dst {
		return nil
	}
	return os.Rename(src, dst)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
