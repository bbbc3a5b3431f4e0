package templates

import (
	"strconv"
	"strings"
	"time"

	"github.com/bnema/convqueue/internal/domain"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func itemDuration(item *domain.QueueItem) string {
	if !item.DateConversionStarted.Valid {
		return ""
	}
	if !item.DateConversionCompleted.Valid {
		return time.Since(item.DateConversionStarted.Time).Round(time.Second).String()
	}
	return item.Duration().Round(time.Second).String()
}

func lastLine(detail string) string {
	detail = strings.TrimRight(detail, "\n")
	if i := strings.LastIndexByte(detail, '\n'); i >= 0 {
		return detail[i+1:]
	}
	return detail
}
