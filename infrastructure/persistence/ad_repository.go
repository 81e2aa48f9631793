package persistence

import (
	"context"
	"database/sql"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// AdRepository looks up ads on PostgreSQL.
type AdRepository struct {
	db *sql.DB
}

func NewAdRepository(db *sql.DB) repository.IAd {
	return &AdRepository{db: db}
}

// FindByIDOrTraceID matches the platform ad id or the internal trace id.
func (r *AdRepository) FindByIDOrTraceID(ctx context.Context, identifier string) (*model.Ad, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, fb_ad_id, ad_trace_id, user_id, page_id, status, created_at
		 FROM ads WHERE fb_ad_id=$1 OR ad_trace_id=$1 ORDER BY created_at DESC LIMIT 1`,
		identifier)

	ad := &model.Ad{}
	var traceID, pageID, status sql.NullString
	if err := row.Scan(&ad.ID, &ad.FbAdID, &traceID, &ad.UserID, &pageID, &status, &ad.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if traceID.Valid {
		ad.AdTraceID = &traceID.String
	}
	if pageID.Valid {
		ad.PageID = &pageID.String
	}
	if status.Valid {
		ad.Status = &status.String
	}
	return ad, nil
}
