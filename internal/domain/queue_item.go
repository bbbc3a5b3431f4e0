package domain

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// UnsavedID marks a queue item that has not been persisted yet.
const UnsavedID int64 = 0

type ConversionType string

const (
	ConversionCreateOptimized ConversionType = "create_optimized"
	ConversionRotateVideo     ConversionType = "rotate_video"
)

func (c ConversionType) Valid() bool {
	switch c {
	case ConversionCreateOptimized, ConversionRotateVideo:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemStatusWaiting    ItemStatus = "waiting"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusComplete   ItemStatus = "complete"
	ItemStatusError      ItemStatus = "error"
	ItemStatusCanceled   ItemStatus = "canceled"
)

// IsTerminal reports whether the status is one the worker never leaves.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusComplete || s == ItemStatusError || s == ItemStatusCanceled
}

type QueueItem struct {
	ID                      int64          `json:"id"`
	AssetID                 int64          `json:"asset_id"`
	Status                  ItemStatus     `json:"status"`
	ConversionType          ConversionType `json:"conversion_type"`
	RotateFlip              RotateFlip     `json:"rotate_flip"`
	StatusDetail            string         `json:"status_detail"`
	NewFilename             string         `json:"new_filename"`
	DateAdded               time.Time      `json:"date_added"`
	DateConversionStarted   sql.NullTime   `json:"date_conversion_started"`
	DateConversionCompleted sql.NullTime   `json:"date_conversion_completed"`
}

// NewQueueItem builds a waiting item for the asset. The rotate/flip amount is
// captured from the asset's current state.
func NewQueueItem(asset *Asset, conversionType ConversionType) *QueueItem {
	return &QueueItem{
		ID:             UnsavedID,
		AssetID:        asset.ID,
		Status:         ItemStatusWaiting,
		ConversionType: conversionType,
		RotateFlip:     asset.NeededRotateFlip(),
		DateAdded:      time.Now().UTC(),
	}
}

func (q *QueueItem) IsNew() bool {
	return q.ID == UnsavedID
}

// Clone returns a copy safe to hand out to other goroutines.
func (q *QueueItem) Clone() *QueueItem {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}

// AppendDetail adds a line to the status detail log.
func (q *QueueItem) AppendDetail(msg string) {
	msg = strings.TrimRight(msg, "\n")
	if q.StatusDetail == "" {
		q.StatusDetail = msg
		return
	}
	q.StatusDetail += "\n" + msg
}

func (q *QueueItem) MarkStarted(at time.Time) {
	q.Status = ItemStatusProcessing
	q.DateConversionStarted = sql.NullTime{Time: at, Valid: true}
}

func (q *QueueItem) MarkCompleted(status ItemStatus, at time.Time) {
	q.Status = status
	q.DateConversionCompleted = sql.NullTime{Time: at, Valid: true}
}

// ResetToWaiting rolls an interrupted item back so it is picked up again.
func (q *QueueItem) ResetToWaiting() {
	q.Status = ItemStatusWaiting
	q.DateConversionStarted = sql.NullTime{}
	q.DateConversionCompleted = sql.NullTime{}
}

func (q *QueueItem) Duration() time.Duration {
	if !q.DateConversionStarted.Valid || !q.DateConversionCompleted.Valid {
		return 0
	}
	return q.DateConversionCompleted.Time.Sub(q.DateConversionStarted.Time)
}

type queueItemAlias QueueItem

// queueItemJSON shadows the nullable dates so they encode as a timestamp or
// null instead of the sql.NullTime struct.
type queueItemJSON struct {
	queueItemAlias
	DateConversionStarted   *time.Time `json:"date_conversion_started"`
	DateConversionCompleted *time.Time `json:"date_conversion_completed"`
}

func (q QueueItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(queueItemJSON{
		queueItemAlias:          queueItemAlias(q),
		DateConversionStarted:   timePtr(q.DateConversionStarted),
		DateConversionCompleted: timePtr(q.DateConversionCompleted),
	})
}

func (q *QueueItem) UnmarshalJSON(data []byte) error {
	var aux queueItemJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = QueueItem(aux.queueItemAlias)
	q.DateConversionStarted = nullTime(aux.DateConversionStarted)
	q.DateConversionCompleted = nullTime(aux.DateConversionCompleted)
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
