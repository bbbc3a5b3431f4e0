package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
)

const assetColumns = `id, gallery_id, album_id, type, title, width, height, rotate_flip, tags,
	original_path, original_size, original_width, original_height,
	optimized_path, optimized_size, optimized_width, optimized_height, created_at`

type AssetStore struct {
	db *sql.DB
}

func (a *AssetStore) Create(ctx context.Context, asset *domain.Asset) error {
	tags, err := encodeTags(asset.Tags)
	if err != nil {
		return err
	}
	opt := optimizedColumns(asset.Optimized)

	res, err := a.db.ExecContext(ctx, `
		INSERT INTO assets (gallery_id, album_id, type, title, width, height, rotate_flip, tags,
			original_path, original_size, original_width, original_height,
			optimized_path, optimized_size, optimized_width, optimized_height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.GalleryID, asset.AlbumID, string(asset.Type), asset.Title,
		asset.Width, asset.Height, string(asset.RotateFlip), tags,
		asset.Original.Path, asset.Original.FileSize, asset.Original.Width, asset.Original.Height,
		opt.path, opt.size, opt.width, opt.height, asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("asset id: %w", err)
	}
	asset.ID = id
	return nil
}

func (a *AssetStore) Get(ctx context.Context, id int64) (*domain.Asset, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if err != nil {
		return nil, notFound(err)
	}
	return asset, nil
}

// List returns every asset ordered by id.
func (a *AssetStore) List(ctx context.Context) ([]*domain.Asset, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func (a *AssetStore) Save(ctx context.Context, asset *domain.Asset) error {
	tags, err := encodeTags(asset.Tags)
	if err != nil {
		return err
	}
	opt := optimizedColumns(asset.Optimized)

	res, err := a.db.ExecContext(ctx, `
		UPDATE assets
		SET gallery_id = ?, album_id = ?, type = ?, title = ?, width = ?, height = ?,
			rotate_flip = ?, tags = ?,
			original_path = ?, original_size = ?, original_width = ?, original_height = ?,
			optimized_path = ?, optimized_size = ?, optimized_width = ?, optimized_height = ?
		WHERE id = ?`,
		asset.GalleryID, asset.AlbumID, string(asset.Type), asset.Title, asset.Width, asset.Height,
		string(asset.RotateFlip), tags,
		asset.Original.Path, asset.Original.FileSize, asset.Original.Width, asset.Original.Height,
		opt.path, opt.size, opt.width, opt.height,
		asset.ID,
	)
	if err != nil {
		return fmt.Errorf("update asset %d: %w", asset.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset %d: %w", asset.ID, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *AssetStore) Delete(ctx context.Context, id int64) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete asset %d: %w", id, err)
	}
	return nil
}

type renditionColumns struct {
	path          sql.NullString
	size          int64
	width, height int
}

func optimizedColumns(r *domain.Rendition) renditionColumns {
	if r == nil {
		return renditionColumns{}
	}
	return renditionColumns{
		path:   sql.NullString{String: r.Path, Valid: r.Path != ""},
		size:   r.FileSize,
		width:  r.Width,
		height: r.Height,
	}
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		asset                       domain.Asset
		mediaType, rotateFlip, tags string
		opt                         renditionColumns
	)
	err := row.Scan(
		&asset.ID, &asset.GalleryID, &asset.AlbumID, &mediaType, &asset.Title,
		&asset.Width, &asset.Height, &rotateFlip, &tags,
		&asset.Original.Path, &asset.Original.FileSize, &asset.Original.Width, &asset.Original.Height,
		&opt.path, &opt.size, &opt.width, &opt.height, &asset.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	asset.Type = domain.MediaType(mediaType)
	asset.RotateFlip = domain.RotateFlip(rotateFlip)
	if err := json.Unmarshal([]byte(tags), &asset.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for asset %d: %w", asset.ID, err)
	}
	if opt.path.Valid {
		asset.Optimized = &domain.Rendition{
			Path:     opt.path.String,
			FileSize: opt.size,
			Width:    opt.width,
			Height:   opt.height,
		}
	}
	return &asset, nil
}

var _ port.AssetStore = (*AssetStore)(nil)
