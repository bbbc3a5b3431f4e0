package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Argument template tokens.
const (
	TokenSourceFilePath      = "{SourceFilePath}"
	TokenDestinationFilePath = "{DestinationFilePath}"
	TokenWidth               = "{Width}"
	TokenHeight              = "{Height}"
	TokenAutoRotateFilter    = "{AutoRotateFilter}"
	TokenRotateFilter        = "{RotateFilter}"
)

// RotateVideoArguments is the fixed template used for rotate jobs.
const RotateVideoArguments = `-y -i "{SourceFilePath}" -vf "{RotateFilter}" -c:a copy -metadata:s:v:0 rotate=0 "{DestinationFilePath}"`

// ArgumentValues holds the values substituted into an argument template.
type ArgumentValues struct {
	SourcePath      string
	DestinationPath string
	Width           int
	Height          int
	RotateFlip      RotateFlip
}

func (v ArgumentValues) replacer() *strings.Replacer {
	filter := v.RotateFlip.Filter()
	autoRotate := ""
	if filter != "" {
		autoRotate = filter + ","
	}
	rotate := filter
	if rotate == "" {
		rotate = "null"
	}
	return strings.NewReplacer(
		TokenSourceFilePath, v.SourcePath,
		TokenDestinationFilePath, v.DestinationPath,
		TokenWidth, strconv.Itoa(v.Width),
		TokenHeight, strconv.Itoa(v.Height),
		TokenAutoRotateFilter, autoRotate,
		TokenRotateFilter, rotate,
	)
}

// RenderArguments splits the template into arguments and substitutes tokens.
// Splitting happens first so substituted paths containing spaces remain a
// single argument. Quotes group words and are removed. Unbalanced quotes and
// shell operators are rejected with ErrInvalidArguments.
func RenderArguments(template string, values ArgumentValues) ([]string, error) {
	parser := shellwords.NewParser()
	fields, err := parser.Parse(template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if parser.Position >= 0 {
		return nil, fmt.Errorf("%w: shell operator at offset %d", ErrInvalidArguments, parser.Position)
	}

	r := values.replacer()
	args := make([]string, 0, len(fields))
	for _, f := range fields {
		args = append(args, r.Replace(f))
	}
	return args, nil
}

// JoinArguments formats rendered arguments for display in status detail.
func JoinArguments(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t") {
			a = strconv.Quote(a)
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
