package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/watchclub/backend/internal/db"
	"github.com/watchclub/backend/internal/models"
)

const userColumns = `id, email, password_hash, full_name, is_verified, is_admin, last_login, videos, groups, starred_videos, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, full_name, is_verified, is_admin, last_login, videos, groups, starred_videos, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, user.ID, user.Email, user.Password, user.FullName, user.IsVerified, user.IsAdmin, user.LastLogin,
		emptyIfNil(user.Videos), emptyIfNil(user.Groups), emptyIfNil(user.StarredVideos), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by its identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var user models.User
	row := conn.QueryRow(ctx, query, arg)
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.FullName, &user.IsVerified, &user.IsAdmin,
		&user.LastLogin, &user.Videos, &user.Groups, &user.StarredVideos, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// ListProfiles resolves credential-free profiles for the provided user ids.
func (r *PostgresUserRepository) ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, email, full_name
        FROM users
        WHERE id = ANY($1::TEXT[])
        ORDER BY full_name ASC
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

// UpdatePassword replaces the stored credential hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, at)
}

// MarkVerified flags the user's email address as verified.
func (r *PostgresUserRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET is_verified = TRUE, updated_at = $2 WHERE id = $1`, id, at)
}

// TouchLastLogin records a successful login.
func (r *PostgresUserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at)
}

// PushGroup appends a group reference to the user's group set. The append is
// idempotent so a concurrent duplicate join cannot double the reference.
func (r *PostgresUserRepository) PushGroup(ctx context.Context, userID, groupID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE users
        SET groups = CASE WHEN groups @> ARRAY[$2::TEXT] THEN groups ELSE array_append(groups, $2::TEXT) END,
            updated_at = $3
        WHERE id = $1
    `, userID, groupID, at)
}

// PullGroup removes a group reference from the user's group set.
func (r *PostgresUserRepository) PullGroup(ctx context.Context, userID, groupID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE users
        SET groups = array_remove(groups, $2::TEXT), updated_at = $3
        WHERE id = $1
    `, userID, groupID, at)
}

// PushVideo appends a video reference to the user's video set.
func (r *PostgresUserRepository) PushVideo(ctx context.Context, userID, videoID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE users
        SET videos = CASE WHEN videos @> ARRAY[$2::TEXT] THEN videos ELSE array_append(videos, $2::TEXT) END,
            updated_at = $3
        WHERE id = $1
    `, userID, videoID, at)
}

// PullVideos removes the provided video references from the user's video set.
func (r *PostgresUserRepository) PullVideos(ctx context.Context, userID string, videoIDs []string, at time.Time) error {
	if len(videoIDs) == 0 {
		return nil
	}
	return r.exec(ctx, `
        UPDATE users
        SET videos = COALESCE((SELECT array_agg(v) FROM unnest(videos) AS v WHERE v <> ALL($2::TEXT[])), '{}'),
            updated_at = $3
        WHERE id = $1
    `, userID, videoIDs, at)
}

// PushStarred appends a video to the user's starred set.
func (r *PostgresUserRepository) PushStarred(ctx context.Context, userID, videoID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE users
        SET starred_videos = CASE WHEN starred_videos @> ARRAY[$2::TEXT] THEN starred_videos ELSE array_append(starred_videos, $2::TEXT) END,
            updated_at = $3
        WHERE id = $1
    `, userID, videoID, at)
}

// PullStarred removes a video from the user's starred set.
func (r *PostgresUserRepository) PullStarred(ctx context.Context, userID, videoID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE users
        SET starred_videos = array_remove(starred_videos, $2::TEXT), updated_at = $3
        WHERE id = $1
    `, userID, videoID, at)
}

func (r *PostgresUserRepository) exec(ctx context.Context, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const groupColumns = `id, name, code, members, videos, created_at, updated_at`

// PostgresGroupRepository provides PostgreSQL-backed persistence for groups.
type PostgresGroupRepository struct {
	pool db.Pool
}

// NewPostgresGroupRepository constructs a group repository backed by PostgreSQL.
func NewPostgresGroupRepository(pool db.Pool) *PostgresGroupRepository {
	return &PostgresGroupRepository{pool: pool}
}

// Create persists a new group. The unique constraint on the join code is the
// authority on code collisions; callers retry with a fresh code on ErrConflict.
func (r *PostgresGroupRepository) Create(ctx context.Context, group models.Group) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO groups (id, name, code, members, videos, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, group.ID, group.Name, group.Code, emptyIfNil(group.Members), emptyIfNil(group.Videos), group.CreatedAt, group.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert group: %w", err)
	}

	return nil
}

// FindByID fetches a group by its identifier.
func (r *PostgresGroupRepository) FindByID(ctx context.Context, id string) (models.Group, error) {
	return r.findOne(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
}

// FindByCode fetches a group by its join code.
func (r *PostgresGroupRepository) FindByCode(ctx context.Context, code string) (models.Group, error) {
	return r.findOne(ctx, `SELECT `+groupColumns+` FROM groups WHERE code = $1`, code)
}

// FindByIDForMember resolves a group only when the user is a member. A
// missing group and a non-member yield the same ErrNotFound so callers cannot
// probe for group existence.
func (r *PostgresGroupRepository) FindByIDForMember(ctx context.Context, id, userID string) (models.Group, error) {
	return r.findOne(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1 AND members @> ARRAY[$2::TEXT]`, id, userID)
}

func (r *PostgresGroupRepository) findOne(ctx context.Context, query string, args ...any) (models.Group, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Group{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var group models.Group
	row := conn.QueryRow(ctx, query, args...)
	if err := row.Scan(&group.ID, &group.Name, &group.Code, &group.Members, &group.Videos, &group.CreatedAt, &group.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, fmt.Errorf("select group: %w", err)
	}

	return group, nil
}

// ListForMember returns all groups the user belongs to, newest first.
func (r *PostgresGroupRepository) ListForMember(ctx context.Context, userID string) ([]models.Group, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+groupColumns+`
        FROM groups
        WHERE members @> ARRAY[$1::TEXT]
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query groups for member: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Code, &group.Members, &group.Videos, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	return groups, nil
}

// AddMember appends a user to the group's member set.
func (r *PostgresGroupRepository) AddMember(ctx context.Context, groupID, userID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE groups
        SET members = CASE WHEN members @> ARRAY[$2::TEXT] THEN members ELSE array_append(members, $2::TEXT) END,
            updated_at = $3
        WHERE id = $1
    `, groupID, userID, at)
}

// RemoveMember pulls a user from the group's member set.
func (r *PostgresGroupRepository) RemoveMember(ctx context.Context, groupID, userID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE groups
        SET members = array_remove(members, $2::TEXT), updated_at = $3
        WHERE id = $1
    `, groupID, userID, at)
}

// PushVideo appends a video reference to the group's video set.
func (r *PostgresGroupRepository) PushVideo(ctx context.Context, groupID, videoID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE groups
        SET videos = CASE WHEN videos @> ARRAY[$2::TEXT] THEN videos ELSE array_append(videos, $2::TEXT) END,
            updated_at = $3
        WHERE id = $1
    `, groupID, videoID, at)
}

// PullVideos removes the provided video references from the group's video set.
func (r *PostgresGroupRepository) PullVideos(ctx context.Context, groupID string, videoIDs []string, at time.Time) error {
	if len(videoIDs) == 0 {
		return nil
	}
	return r.exec(ctx, `
        UPDATE groups
        SET videos = COALESCE((SELECT array_agg(v) FROM unnest(videos) AS v WHERE v <> ALL($2::TEXT[])), '{}'),
            updated_at = $3
        WHERE id = $1
    `, groupID, videoIDs, at)
}

// Delete removes the group row.
func (r *PostgresGroupRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
}

func (r *PostgresGroupRepository) exec(ctx context.Context, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const videoColumns = `id, url, owner_id, group_id, seen_by, title, thumbnail, created_at, updated_at`

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, url, owner_id, group_id, seen_by, title, thumbnail, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, video.ID, video.URL, video.OwnerID, video.GroupID, emptyIfNil(video.SeenBy), video.Title, video.Thumbnail, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a video by its identifier.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var video models.Video
	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	if err := scanVideo(row, &video); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// ListByOwnerAndGroup returns one member's videos within one group, newest
// first.
func (r *PostgresVideoRepository) ListByOwnerAndGroup(ctx context.Context, ownerID, groupID string) ([]models.Video, error) {
	return r.list(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE owner_id = $1 AND group_id = $2
        ORDER BY created_at DESC
    `, ownerID, groupID)
}

// ListByIDs resolves the provided ids newest-first, dropping ids that no
// longer exist. Starred lists are read through this so dangling references
// never surface.
func (r *PostgresVideoRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE id = ANY($1::TEXT[])
        ORDER BY created_at DESC
    `, ids)
}

func (r *PostgresVideoRepository) list(ctx context.Context, query string, args ...any) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var video models.Video
		if err := scanVideo(rows, &video); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// UpdateURL replaces the video's link and bumps its last-modified timestamp.
func (r *PostgresVideoRepository) UpdateURL(ctx context.Context, id, url string, at time.Time) error {
	return r.exec(ctx, `UPDATE videos SET url = $2, title = '', thumbnail = '', updated_at = $3 WHERE id = $1`, id, url, at)
}

// SetMetadata records resolved link metadata on the video.
func (r *PostgresVideoRepository) SetMetadata(ctx context.Context, id, title, thumbnail string, at time.Time) error {
	return r.exec(ctx, `UPDATE videos SET title = $2, thumbnail = $3, updated_at = $4 WHERE id = $1`, id, title, thumbnail, at)
}

// AddSeenBy idempotently appends a viewer to the video's seen-by set.
func (r *PostgresVideoRepository) AddSeenBy(ctx context.Context, id, userID string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE videos
        SET seen_by = CASE WHEN seen_by @> ARRAY[$2::TEXT] THEN seen_by ELSE array_append(seen_by, $2::TEXT) END,
            updated_at = CASE WHEN seen_by @> ARRAY[$2::TEXT] THEN updated_at ELSE $3 END
        WHERE id = $1
    `, id, userID, at)
}

// DeleteByIDs removes the provided video rows. Missing ids are not an error;
// the caller may be re-running a partially applied cleanup.
func (r *PostgresVideoRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = ANY($1::TEXT[])`, ids); err != nil {
		return fmt.Errorf("delete videos: %w", err)
	}

	return nil
}

// DeleteByGroup removes every video belonging to the group. Used by the
// empty-group purge when the last member leaves.
func (r *PostgresVideoRepository) DeleteByGroup(ctx context.Context, groupID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM videos WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("delete group videos: %w", err)
	}

	return nil
}

// DeleteWithReferences removes the video row and pulls its id from the
// owner's and group's reference arrays in one transaction. The transaction
// retries on serialization conflicts; a video already removed by a concurrent
// leave cascade surfaces as ErrNotFound, not as a partial state.
func (r *PostgresVideoRepository) DeleteWithReferences(ctx context.Context, video models.Video, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	err = crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// Reference pulls tolerate already-converged state; only the row
		// delete decides whether the video still existed.
		if _, err := tx.Exec(ctx, `
            UPDATE users
            SET videos = array_remove(videos, $2::TEXT), updated_at = $3
            WHERE id = $1
        `, video.OwnerID, video.ID, at); err != nil {
			return fmt.Errorf("pull video from owner: %w", err)
		}

		if _, err := tx.Exec(ctx, `
            UPDATE groups
            SET videos = array_remove(videos, $2::TEXT), updated_at = $3
            WHERE id = $1
        `, video.GroupID, video.ID, at); err != nil {
			return fmt.Errorf("pull video from group: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, video.ID)
		if err != nil {
			return fmt.Errorf("delete video: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete video with references: %w", err)
	}

	return nil
}

func (r *PostgresVideoRepository) exec(ctx context.Context, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner, video *models.Video) error {
	return row.Scan(&video.ID, &video.URL, &video.OwnerID, &video.GroupID, &video.SeenBy,
		&video.Title, &video.Thumbnail, &video.CreatedAt, &video.UpdatedAt)
}

// emptyIfNil keeps array columns NOT NULL even when the caller leaves a
// reference slice unset.
func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ GroupRepository = (*PostgresGroupRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
