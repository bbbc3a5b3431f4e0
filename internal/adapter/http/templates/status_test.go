package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/service"
)

func render(t *testing.T, status service.QueueStatus, current *domain.QueueItem, items []*domain.QueueItem) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, StatusPage(status, current, items).Render(context.Background(), &b))
	return b.String()
}

func TestStatusPage_Empty(t *testing.T) {
	html := render(t, service.QueueIdle, nil, nil)

	assert.Contains(t, html, "Queue is <strong>idle</strong>.")
	assert.Contains(t, html, "<p>No items.</p>")
	assert.NotContains(t, html, "<table>")
	assert.Contains(t, html, `new EventSource("/events")`)
}

func TestStatusPage_Rows(t *testing.T) {
	added := time.Now().Add(-2 * time.Hour)
	done := &domain.QueueItem{
		ID:             4,
		AssetID:        12,
		Status:         domain.ItemStatusComplete,
		ConversionType: domain.ConversionCreateOptimized,
		NewFilename:    `clip "final"_opt.mp4`,
		StatusDetail:   "Converting\nDone in 3s",
		DateAdded:      added,
	}
	done.MarkStarted(added)
	done.MarkCompleted(domain.ItemStatusComplete, added.Add(3*time.Second))

	html := render(t, service.QueueIdle, nil, []*domain.QueueItem{done})

	assert.Contains(t, html, `<tr id="item-4">`)
	assert.Contains(t, html, `<td data-status="complete">complete</td>`)
	assert.Contains(t, html, "clip &#34;final&#34;_opt.mp4")
	assert.Contains(t, html, "<pre>Done in 3s</pre>")
	assert.Contains(t, html, "<td>3s</td>")
	assert.Contains(t, html, "2 hours ago")
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "", lastLine(""))
	assert.Equal(t, "b", lastLine("a\nb\n"))
}
