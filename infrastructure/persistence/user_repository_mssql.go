package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"page-token-service/domain/model"
	"page-token-service/domain/repository"
)

// UserRepositoryMSSQL implements connected-account persistence on SQL Server.
type UserRepositoryMSSQL struct {
	db *sql.DB
}

func NewUserRepositoryMSSQL(db *sql.DB) repository.IUser {
	return &UserRepositoryMSSQL{db: db}
}

func (r *UserRepositoryMSSQL) FindByFbIDs(ctx context.Context, appID string, appEnv string, fbIDs []string) ([]*model.User, error) {
	if len(fbIDs) == 0 {
		return nil, nil
	}
	// No array binding in the driver; expand placeholders.
	placeholders := make([]string, len(fbIDs))
	args := []interface{}{appID, appEnv}
	for i, id := range fbIDs {
		placeholders[i] = fmt.Sprintf("@p%d", i+3)
		args = append(args, id)
	}
	q := `SELECT ` + userColumns + ` FROM dbo.[connected_users] WHERE app_id=@p1 AND app_env=@p2 AND fb_id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := r.db.QueryContext(ctx, q, args...)
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

func (r *UserRepositoryMSSQL) GetAccessToken(ctx context.Context, userDBID int64) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT access_token FROM dbo.[connected_users] WHERE id=@p1`, userDBID)
	var token string
	if err := row.Scan(&token); err != nil {
		return "", err
	}
	return token, nil
}

func (r *UserRepositoryMSSQL) SetTokenValidityByToken(ctx context.Context, token string, valid bool) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[connected_users] SET is_token_valid=@p1, updated_at=@p2 WHERE access_token=@p3`,
		valid, time.Now().UTC(), token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepositoryMSSQL) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	// MERGE upsert by (app_id, app_env, fb_id)
	q := `MERGE dbo.[connected_users] AS target
USING (VALUES (@p1, @p2, @p3)) AS src(app_id, app_env, fb_id)
ON target.app_id = src.app_id AND target.app_env = src.app_env AND target.fb_id = src.fb_id
WHEN MATCHED THEN UPDATE SET
    email=COALESCE(@p4, target.email),
    access_token=@p5,
    is_token_valid=@p6,
    has_ads=@p7,
    token_debug_result=COALESCE(@p8, target.token_debug_result),
    updated_at=@p10
WHEN NOT MATCHED THEN
    INSERT (app_id, app_env, fb_id, email, access_token, is_token_valid, has_ads, token_debug_result, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10)
OUTPUT INSERTED.id;`
	return r.db.QueryRowContext(ctx, q,
		user.AppID, user.AppEnv, user.FbID,
		user.Email,
		user.AccessToken,
		user.IsTokenValid,
		user.HasAds,
		nullJSONString(user.TokenDebug),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
}
