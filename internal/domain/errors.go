package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrAssetVanished     = errors.New("asset no longer exists")
	ErrItemNotWaiting    = errors.New("queue item is not waiting")
	ErrNoEncoderSettings = errors.New("no matching encoder settings")
	ErrConversionFailed  = errors.New("conversion produced no output file")
	ErrCanceled          = errors.New("conversion canceled")
	ErrToolUnavailable   = errors.New("encoding tool unavailable")
	ErrDuplicateItem     = errors.New("asset already waiting or processing for this conversion")
	ErrInvalidArguments  = errors.New("invalid argument template")
)
