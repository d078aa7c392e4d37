// Package content provides database operations for entries, their tags
// and their key/value metadata.
//
// # Write path
//
// Save and Update run inside a single transaction: the entry row first,
// then a tag upsert keyed by slug, the entry/tag link, and a metadata
// upsert keyed by (entry id, key). Updates are full-replace: existing
// links and metadata are deleted and re-inserted from the passed-in
// entry, never diffed.
//
// # Read path
//
// Every read issues exactly one query that left-joins entries to their
// tags and metadata, then groups the multiplied rows in memory. The
// naive alternative is 1 + 2N queries; round trips on a file-backed
// engine cost more than the in-memory grouping pass.
package content

import (
	"context"
	"database/sql"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/chronicle/internal/database"
	"github.com/mrlokans/chronicle/internal/database/dberr"
	"github.com/mrlokans/chronicle/internal/entities"
)

// ErrMissingID is returned (classified as a Data error) when Update is
// called with an entry that has never been saved.
var ErrMissingID = errors.New("entry has no identity; save it first")

// Repository handles all entry, tag and metadata database operations.
type Repository struct {
	pool *database.Pool
}

// NewRepository creates a new content repository on the injected pool.
func NewRepository(pool *database.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryJoinQuery = `
	SELECT e.id, e.title, e.slug, e.date, e.author, e.account_id,
	       e.excerpt, e.content, e.published, e.featured, e.image,
	       t.id, t.name, t.slug,
	       m.key, m.value
	FROM entries e
	LEFT JOIN entry_tags et ON et.entry_id = e.id
	LEFT JOIN tags t ON t.id = et.tag_id
	LEFT JOIN entry_metadata m ON m.entry_id = e.id`

// GetAll returns every entry, newest first, with tags and metadata
// attached.
func (r *Repository) GetAll(ctx context.Context) ([]entities.Entry, error) {
	return r.query(ctx, "content.GetAll", entryJoinQuery+` ORDER BY e.date DESC`)
}

// GetPublished returns published entries, newest first.
func (r *Repository) GetPublished(ctx context.Context) ([]entities.Entry, error) {
	return r.query(ctx, "content.GetPublished",
		entryJoinQuery+` WHERE e.published = 1 ORDER BY e.date DESC`)
}

// GetBySlug returns the entry with the given slug, or nil when no such
// entry exists.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*entities.Entry, error) {
	return r.queryOne(ctx, "content.GetBySlug",
		entryJoinQuery+` WHERE e.slug = ?`, slug)
}

// GetByID returns the entry with the given id, or nil when no such
// entry exists.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entities.Entry, error) {
	return r.queryOne(ctx, "content.GetByID",
		entryJoinQuery+` WHERE e.id = ?`, id)
}

// Save inserts a new entry together with its tags and metadata and
// returns the assigned identity. The passed-in entry is not mutated.
func (r *Repository) Save(ctx context.Context, entry *entities.Entry) (int64, error) {
	const op = "content.Save"

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, dberr.New(dberr.Transaction, op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries (title, slug, date, author, account_id, excerpt, content, published, featured, image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Title, entry.Slug, entry.Date, entry.Author, entry.AccountID,
		entry.Excerpt, entry.Content, entry.Published, entry.Featured, entry.Image,
	)
	if err != nil {
		return 0, dberr.Classify(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, dberr.Classify(op, err)
	}

	if err := writeRelations(ctx, tx, id, entry); err != nil {
		return 0, dberr.Classify(op, err)
	}

	if err := commit(tx, op); err != nil {
		return 0, err
	}
	return id, nil
}

// Update replaces the entry's own columns and fully replaces its tag
// links and metadata from the passed-in entry. The entry must already
// have an identity.
func (r *Repository) Update(ctx context.Context, entry *entities.Entry) error {
	const op = "content.Update"

	if entry.ID == 0 {
		return dberr.New(dberr.Data, op, ErrMissingID)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return dberr.New(dberr.Transaction, op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE entries
		SET title = ?, slug = ?, date = ?, author = ?, account_id = ?,
		    excerpt = ?, content = ?, published = ?, featured = ?, image = ?
		WHERE id = ?`,
		entry.Title, entry.Slug, entry.Date, entry.Author, entry.AccountID,
		entry.Excerpt, entry.Content, entry.Published, entry.Featured, entry.Image,
		entry.ID,
	); err != nil {
		return dberr.Classify(op, err)
	}

	// Full replace, not a diff.
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE entry_id = ?`, entry.ID); err != nil {
		return dberr.Classify(op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_metadata WHERE entry_id = ?`, entry.ID); err != nil {
		return dberr.Classify(op, err)
	}

	if err := writeRelations(ctx, tx, entry.ID, entry); err != nil {
		return dberr.Classify(op, err)
	}

	return commit(tx, op)
}

// Delete removes an entry. Its tag links and metadata rows go with it
// through the foreign-key cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	const op = "content.Delete"

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return dberr.Classify(op, err)
	}
	return nil
}

// GetTags returns every tag, ordered by slug.
func (r *Repository) GetTags(ctx context.Context) ([]entities.Tag, error) {
	const op = "content.GetTags"

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, `SELECT id, name, slug FROM tags ORDER BY slug`)
	if err != nil {
		return nil, dberr.Classify(op, err)
	}
	defer rows.Close()

	var tags []entities.Tag
	for rows.Next() {
		var t entities.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, dberr.Classify(op, err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(op, err)
	}
	return tags, nil
}

// DeleteOrphanTags removes tags no entry links to anymore and returns
// how many were deleted.
func (r *Repository) DeleteOrphanTags(ctx context.Context) (int64, error) {
	const op = "content.DeleteOrphanTags"

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	res, err := conn.ExecContext(ctx,
		`DELETE FROM tags WHERE id NOT IN (SELECT tag_id FROM entry_tags)`)
	if err != nil {
		return 0, dberr.Classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dberr.Classify(op, err)
	}
	return n, nil
}

// writeRelations upserts the entry's tags by slug, links them to the
// entry and upserts its metadata pairs. Runs inside the caller's
// transaction.
//
// The tag upsert is last-writer-wins: two entries saving the same tag
// slug with different display names leave the shared tag with whichever
// name was written last.
func writeRelations(ctx context.Context, tx *sql.Tx, entryID int64, entry *entities.Entry) error {
	for _, tag := range entry.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tags (name, slug) VALUES (?, ?)
			ON CONFLICT(slug) DO UPDATE SET name = excluded.name`,
			tag.Name, tag.Slug,
		); err != nil {
			return err
		}

		var tagID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM tags WHERE slug = ?`, tag.Slug,
		).Scan(&tagID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO entry_tags (entry_id, tag_id) VALUES (?, ?)`,
			entryID, tagID,
		); err != nil {
			return err
		}
	}

	for key, value := range entry.Metadata {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entry_metadata (entry_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT(entry_id, key) DO UPDATE SET value = excluded.value`,
			entryID, key, value,
		); err != nil {
			return err
		}
	}
	return nil
}

// commit finalizes the transaction. The driver rolls the transaction
// back whenever COMMIT itself fails, so a lock-contended commit has
// already discarded its writes by the time the error surfaces; it is
// returned as a Locking error for the caller to retry, never reported
// as applied.
func commit(tx *sql.Tx, op string) error {
	if err := tx.Commit(); err != nil {
		classified := dberr.Classify(op, err)
		if classified.Kind == dberr.Locking {
			log.WithFields(log.Fields{
				"op":    op,
				"error": err,
			}).Warn("commit blocked by lock; transaction rolled back")
			return classified
		}
		return dberr.New(dberr.Transaction, op, err)
	}
	return nil
}

// query runs the join query and groups its multiplied rows into
// distinct entries, preserving the query's entry order.
func (r *Repository) query(ctx context.Context, op, q string, args ...any) ([]entities.Entry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dberr.Classify(op, err)
	}
	defer rows.Close()

	return groupRows(rows, op)
}

func (r *Repository) queryOne(ctx context.Context, op, q string, args ...any) (*entities.Entry, error) {
	entries, err := r.query(ctx, op, q, args...)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// groupRows folds the tag×metadata cross product back into one entry
// per id: tags are deduplicated by id, metadata keys are collapsed by
// the map.
func groupRows(rows *sql.Rows, op string) ([]entities.Entry, error) {
	var order []int64
	byID := make(map[int64]*entities.Entry)

	for rows.Next() {
		var (
			e         entities.Entry
			date      time.Time
			accountID sql.NullInt64
			image     sql.NullString
			tagID     sql.NullInt64
			tagName   sql.NullString
			tagSlug   sql.NullString
			metaKey   sql.NullString
			metaValue sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Slug, &date, &e.Author, &accountID,
			&e.Excerpt, &e.Content, &e.Published, &e.Featured, &image,
			&tagID, &tagName, &tagSlug,
			&metaKey, &metaValue,
		); err != nil {
			return nil, dberr.Classify(op, err)
		}

		entry, seen := byID[e.ID]
		if !seen {
			e.Date = date
			if accountID.Valid {
				e.AccountID = &accountID.Int64
			}
			if image.Valid {
				e.Image = &image.String
			}
			e.Metadata = make(map[string]string)
			byID[e.ID] = &e
			order = append(order, e.ID)
			entry = &e
		}

		if tagID.Valid && !entry.HasTag(tagID.Int64) {
			entry.Tags = append(entry.Tags, entities.Tag{
				ID:   tagID.Int64,
				Name: tagName.String,
				Slug: tagSlug.String,
			})
		}
		if metaKey.Valid {
			entry.Metadata[metaKey.String] = metaValue.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(op, err)
	}

	entries := make([]entities.Entry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byID[id])
	}
	return entries, nil
}
