package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
)

const queueItemColumns = `id, asset_id, status, conversion_type, rotate_flip, status_detail,
	new_filename, date_added, date_conversion_started, date_conversion_completed`

type QueueStore struct {
	db *sql.DB
}

func (q *QueueStore) Create(ctx context.Context, item *domain.QueueItem) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO queue_items (asset_id, status, conversion_type, rotate_flip, status_detail,
			new_filename, date_added, date_conversion_started, date_conversion_completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.AssetID,
		string(item.Status),
		string(item.ConversionType),
		string(item.RotateFlip),
		item.StatusDetail,
		item.NewFilename,
		item.DateAdded,
		item.DateConversionStarted,
		item.DateConversionCompleted,
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("queue item id: %w", err)
	}
	item.ID = id
	return nil
}

func (q *QueueStore) Get(ctx context.Context, id int64) (*domain.QueueItem, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+queueItemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

func (q *QueueStore) List(ctx context.Context) ([]*domain.QueueItem, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+queueItemColumns+` FROM queue_items ORDER BY date_added, id`)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update writes every mutable column. Updating a deleted item is a no-op.
func (q *QueueStore) Update(ctx context.Context, item *domain.QueueItem) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, rotate_flip = ?, status_detail = ?, new_filename = ?,
			date_conversion_started = ?, date_conversion_completed = ?
		WHERE id = ?`,
		string(item.Status),
		string(item.RotateFlip),
		item.StatusDetail,
		item.NewFilename,
		item.DateConversionStarted,
		item.DateConversionCompleted,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}
	return nil
}

func (q *QueueStore) Delete(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete queue item %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*domain.QueueItem, error) {
	var (
		item                               domain.QueueItem
		status, conversionType, rotateFlip string
	)
	err := row.Scan(
		&item.ID,
		&item.AssetID,
		&status,
		&conversionType,
		&rotateFlip,
		&item.StatusDetail,
		&item.NewFilename,
		&item.DateAdded,
		&item.DateConversionStarted,
		&item.DateConversionCompleted,
	)
	if err != nil {
		return nil, err
	}
	item.Status = domain.ItemStatus(status)
	item.ConversionType = domain.ConversionType(conversionType)
	item.RotateFlip = domain.RotateFlip(rotateFlip)
	return &item, nil
}

var _ port.QueueStore = (*QueueStore)(nil)
