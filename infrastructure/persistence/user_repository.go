package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// UserRepository implements connected-account persistence on PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.IUser {
	return &UserRepository{db: db}
}

const userColumns = `id, fb_id, app_id, app_env, email, access_token, is_token_valid, has_ads, token_debug_result, created_at, updated_at`

func (r *UserRepository) FindByFbIDs(ctx context.Context, appID string, appEnv string, fbIDs []string) ([]*model.User, error) {
	if len(fbIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM connected_users WHERE app_id=$1 AND app_env=$2 AND fb_id = ANY($3)`,
		appID, appEnv, pq.Array(fbIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) GetAccessToken(ctx context.Context, userDBID int64) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT access_token FROM connected_users WHERE id=$1`, userDBID)
	var token string
	if err := row.Scan(&token); err != nil {
		return "", err
	}
	return token, nil
}

func (r *UserRepository) SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connected_users SET is_token_valid=$1, updated_at=$2 WHERE access_token=$3`,
		valid, time.Now().UTC(), token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return r.db.QueryRowContext(ctx,
		`INSERT INTO connected_users (fb_id, app_id, app_env, email, access_token, is_token_valid, has_ads, token_debug_result, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (app_id, app_env, fb_id) DO UPDATE SET
		   email = COALESCE(EXCLUDED.email, connected_users.email),
		   access_token = EXCLUDED.access_token,
		   is_token_valid = EXCLUDED.is_token_valid,
		   has_ads = EXCLUDED.has_ads,
		   token_debug_result = COALESCE(EXCLUDED.token_debug_result, connected_users.token_debug_result),
		   updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		user.FbID, user.AppID, user.AppEnv, user.Email, user.AccessToken,
		user.IsTokenValid, user.HasAds, nullJSON(user.TokenDebug),
		user.CreatedAt, user.UpdatedAt).Scan(&user.ID)
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var email sql.NullString
	var valid sql.NullBool
	var debug []byte
	if err := row.Scan(&user.ID, &user.FbID, &user.AppID, &user.AppEnv, &email,
		&user.AccessToken, &valid, &user.HasAds, &debug,
		&user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		user.Email = &email.String
	}
	if valid.Valid {
		user.IsTokenValid = &valid.Bool
	}
	if len(debug) > 0 {
		user.TokenDebug = debug
	}
	return user, nil
}
