package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/yyozen/linkgate/internal/models"
)

// LinkStore is the read-only contract the resolver needs from the
// persistent link store.
type LinkStore interface {
	// FindBySlug returns the link for a slug, or (nil, nil) when no link
	// exists.
	FindBySlug(ctx context.Context, slug string) (*models.CachedLink, error)
}

// LinkRepository reads link definitions from Postgres. The gateway never
// writes to this store; link management lives elsewhere.
type LinkRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLinkRepository creates a LinkRepository over the given database handle.
func NewLinkRepository(db *sql.DB, logger *zap.Logger) *LinkRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkRepository{db: db, logger: logger}
}

// FindBySlug looks up a link by slug. Expired links are still returned: the
// decision engine owns expiry handling, including the per-link redirect
// override.
func (r *LinkRepository) FindBySlug(ctx context.Context, slug string) (*models.CachedLink, error) {
	query := `
        SELECT id, target_url, expires_at, expired_redirect_url,
               og_title, og_description, og_image_url, og_video_url,
               ios_url, android_url
        FROM links
        WHERE slug = $1
    `

	var (
		link               models.CachedLink
		expiresAt          sql.NullTime
		expiredRedirectURL sql.NullString
		ogTitle            sql.NullString
		ogDescription      sql.NullString
		ogImageURL         sql.NullString
		ogVideoURL         sql.NullString
		iosURL             sql.NullString
		androidURL         sql.NullString
	)

	row := r.db.QueryRowContext(ctx, query, slug)
	err := row.Scan(&link.ID, &link.TargetURL, &expiresAt, &expiredRedirectURL,
		&ogTitle, &ogDescription, &ogImageURL, &ogVideoURL, &iosURL, &androidURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("link lookup failed", zap.String("slug", slug), zap.Error(err))
		return nil, err
	}

	if expiresAt.Valid {
		link.ExpiresAt = &expiresAt.Time
	}
	link.ExpiredRedirectURL = nullableString(expiredRedirectURL)
	link.OGTitle = nullableString(ogTitle)
	link.OGDescription = nullableString(ogDescription)
	link.OGImageURL = nullableString(ogImageURL)
	link.OGVideoURL = nullableString(ogVideoURL)
	link.IOSURL = nullableString(iosURL)
	link.AndroidURL = nullableString(androidURL)

	return &link, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
