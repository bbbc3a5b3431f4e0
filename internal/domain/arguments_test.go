package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderArguments(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   ArgumentValues
		want     []string
	}{
		{
			name:     "paths with spaces stay single arguments",
			template: `-y -i "{SourceFilePath}" "{DestinationFilePath}"`,
			values: ArgumentValues{
				SourcePath:      "/media/my clip.mov",
				DestinationPath: "/media/my clip_opt.mp4",
			},
			want: []string{"-y", "-i", "/media/my clip.mov", "/media/my clip_opt.mp4"},
		},
		{
			name:     "dimensions and auto rotate",
			template: `-vf "{AutoRotateFilter}scale={Width}:{Height}"`,
			values:   ArgumentValues{Width: 640, Height: 480, RotateFlip: Rotate90},
			want:     []string{"-vf", "transpose=1,scale=640:480"},
		},
		{
			name:     "no rotation leaves filter chain intact",
			template: `-vf "{AutoRotateFilter}scale={Width}:{Height}"`,
			values:   ArgumentValues{Width: 320, Height: 240},
			want:     []string{"-vf", "scale=320:240"},
		},
		{
			name:     "rotate filter without rotation is a passthrough",
			template: `-vf {RotateFilter}`,
			values:   ArgumentValues{},
			want:     []string{"-vf", "null"},
		},
		{
			name:     "extra whitespace collapses",
			template: "  -a   b\t-c\n",
			want:     []string{"-a", "b", "-c"},
		},
		{
			name:     "empty quoted argument survives",
			template: `-metadata title=""  x`,
			want:     []string{"-metadata", "title=", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderArguments(tt.template, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderArguments_InvalidTemplates(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "unterminated double quote", template: `-y -i "{SourceFilePath} -c:v libx264 "{DestinationFilePath}`},
		{name: "unterminated single quote", template: `-vf 'scale={Width}:{Height} {DestinationFilePath}`},
		{name: "shell pipe", template: `-i {SourceFilePath} -f mp4 - | tee {DestinationFilePath}`},
		{name: "command separator", template: `-i {SourceFilePath} {DestinationFilePath}; rm {SourceFilePath}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := RenderArguments(tt.template, ArgumentValues{SourcePath: "/in.mov", DestinationPath: "/out.mp4"})
			assert.ErrorIs(t, err, ErrInvalidArguments)
			assert.Nil(t, args)
		})
	}
}

func TestRenderArguments_DefaultSettingsParse(t *testing.T) {
	for _, s := range DefaultEncoderSettings() {
		args, err := RenderArguments(s.Arguments, ArgumentValues{SourcePath: "/in dir/a.mov", DestinationPath: "/out dir/a.mp4", Width: 640, Height: 480})
		require.NoError(t, err, s.String())
		assert.Contains(t, args, "/in dir/a.mov")
		assert.Equal(t, "/out dir/a.mp4", args[len(args)-1])
	}

	args, err := RenderArguments(RotateVideoArguments, ArgumentValues{SourcePath: "/a.mov", DestinationPath: "/b.mov", RotateFlip: Rotate180})
	require.NoError(t, err)
	assert.Contains(t, args, "transpose=1,transpose=1")
}

func TestJoinArguments(t *testing.T) {
	got := JoinArguments([]string{"-i", "/a b/in.mov", "", "/out.mp4"})

	assert.Equal(t, `-i "/a b/in.mov" "" /out.mp4`, got)
}

func TestRotateFlip_Filter(t *testing.T) {
	assert.Equal(t, "transpose=2", Rotate270.Filter())
	assert.Equal(t, "", RotateNone.Filter())
	assert.True(t, Rotate90.SwapsDimensions())
	assert.False(t, FlipVertical.SwapsDimensions())
	assert.False(t, RotateFlip("bogus").Valid())
}
