package domain

// ConversionRequest is one invocation of the external encoding tool.
type ConversionRequest struct {
	SourcePath      string
	DestinationPath string
	Arguments       []string
}

// ConversionResult describes a single conversion attempt. It is consumed right
// away to update the queue item and the asset and never persisted.
type ConversionResult struct {
	SourcePath            string
	DestinationPath       string
	EncoderSetting        *EncoderSetting
	Width                 int
	Height                int
	ToolOutput            string
	FileCreated           bool
	FileSize              int64
	CancellationRequested bool
}

// FinalStatus maps the outcome of the last attempt to the item status.
func (r *ConversionResult) FinalStatus() ItemStatus {
	switch {
	case r == nil:
		return ItemStatusError
	case r.CancellationRequested:
		return ItemStatusCanceled
	case r.FileCreated:
		return ItemStatusComplete
	default:
		return ItemStatusError
	}
}
