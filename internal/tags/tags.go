// Package tags manages the association between tracks and the host's
// free-form tag vocabulary (djmdMyTag / djmdSongMyTag).
//
// Associations form a set per (content, tag): tagging twice writes once and
// allocates one change sequence number.
package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/djmd/internal/content"
	"github.com/roach88/djmd/internal/seq"
	"github.com/roach88/djmd/internal/store"
)

// Tag is a row of the host's tag vocabulary.
type Tag struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// errNoChange aborts a write transaction that turned out to be a no-op.
var errNoChange = errors.New("no change")

// Manager adds, removes and lists tag associations.
type Manager struct {
	st      *store.Store
	now     func() time.Time
	log     *slog.Logger
	counter seq.Source
}

// Option configures a Manager.
type Option func(*Manager)

// WithCounter sets the source of change sequence numbers. Defaults to seq.Bind.
func WithCounter(src seq.Source) Option {
	return func(m *Manager) {
		if src != nil {
			m.counter = src
		}
	}
}

// NewManager returns a Manager writing through st. A nil now uses
// time.Now; a nil log uses slog.Default().
func NewManager(st *store.Store, now func() time.Time, log *slog.Logger, opts ...Option) *Manager {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{st: st, now: now, log: log, counter: seq.Bind}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether c is associated with the tag named name.
func (m *Manager) Exists(ctx context.Context, c content.Content, name string) (bool, error) {
	var exists bool
	err := m.st.DB().QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM djmdSongMyTag AS st
			JOIN djmdMyTag AS t ON st.MyTagID = t.ID
			WHERE st.ContentID = ? AND t.Name = ?
		)
	`, c.ID, name).Scan(&exists)
	if err != nil {
		return false, store.Classify("check tag", err)
	}
	return exists, nil
}

// Tag associates c with the tag named name.
//
// When the association is new, Tag returns the change sequence number it
// was stamped with and inserted=true. When it already exists nothing is
// written, the counter is not advanced, and Tag returns inserted=false.
// An unknown tag name or content ID is a NOT_FOUND error.
func (m *Manager) Tag(ctx context.Context, c content.Content, name string) (usn int64, inserted bool, err error) {
	err = m.st.WithTx(ctx, func(tx *sql.Tx) error {
		if err := requireContent(ctx, tx, c.ID); err != nil {
			return err
		}
		tagID, err := lookupTag(ctx, tx, name)
		if err != nil {
			return err
		}

		next, err := m.counter(tx).Next(ctx)
		if err != nil {
			return err
		}

		ts := store.Timestamp(m.now())
		res, err := tx.ExecContext(ctx, `
			INSERT INTO djmdSongMyTag (ID, MyTagID, ContentID, UUID, rb_local_usn, created_at, updated_at)
			SELECT ?, ?, ?, ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM djmdSongMyTag WHERE ContentID = ? AND MyTagID = ?
			)
		`, uuid.NewString(), tagID, c.ID, uuid.NewString(), next, ts, ts, c.ID, tagID)
		if err != nil {
			return store.Classify("tag content", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return store.Classify("tag content", err)
		}
		if n == 0 {
			return errNoChange
		}

		usn = next
		return nil
	})
	if errors.Is(err, errNoChange) {
		m.log.Debug("tag already present", "content", c.ID, "tag", name)
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	m.log.Debug("tagged content", "content", c.ID, "tag", name, "usn", usn)
	return usn, true, nil
}

// Untag removes the association between c and the tag named name and
// returns the number of rows removed. A missing association is not an error.
func (m *Manager) Untag(ctx context.Context, c content.Content, name string) (int64, error) {
	res, err := m.st.DB().ExecContext(ctx, `
		DELETE FROM djmdSongMyTag
		WHERE ContentID = ?
		  AND MyTagID IN (SELECT ID FROM djmdMyTag WHERE Name = ?)
	`, c.ID, name)
	if err != nil {
		return 0, store.Classify("untag content", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Classify("untag content", err)
	}
	m.log.Debug("untagged content", "content", c.ID, "tag", name, "removed", n)
	return n, nil
}

// Clear removes every tag association of c and returns the number removed.
func (m *Manager) Clear(ctx context.Context, c content.Content) (int64, error) {
	res, err := m.st.DB().ExecContext(ctx, `DELETE FROM djmdSongMyTag WHERE ContentID = ?`, c.ID)
	if err != nil {
		return 0, store.Classify("clear tags", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Classify("clear tags", err)
	}
	m.log.Debug("cleared tags", "content", c.ID, "removed", n)
	return n, nil
}

// List returns the tags associated with c, ordered by name.
// Returns an empty slice (not nil) when c has no tags.
func (m *Manager) List(ctx context.Context, c content.Content) ([]Tag, error) {
	rows, err := m.st.DB().QueryContext(ctx, `
		SELECT t.ID, t.Name
		FROM djmdSongMyTag AS st
		JOIN djmdMyTag AS t ON st.MyTagID = t.ID
		WHERE st.ContentID = ?
		ORDER BY t.Name
	`, c.ID)
	if err != nil {
		return nil, store.Classify("list tags", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, store.Classify("list tags", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list tags", err)
	}
	return tags, nil
}

// Names returns the names of tags, in order.
func Names(tags []Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

func lookupTag(ctx context.Context, q store.Querier, name string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT ID FROM djmdMyTag WHERE Name = ?`, name).Scan(&id)
	if err != nil {
		err = store.Classify("look up tag", err)
		if store.IsNotFound(err) {
			return "", store.NewError(store.ErrCodeNotFound, "look up tag", fmt.Errorf("no tag named %q", name))
		}
		return "", err
	}
	return id, nil
}

func requireContent(ctx context.Context, q store.Querier, id string) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM djmdContent WHERE ID = ?)`, id).Scan(&exists)
	if err != nil {
		return store.Classify("look up content", err)
	}
	if !exists {
		return store.NewError(store.ErrCodeNotFound, "look up content", fmt.Errorf("no content with ID %q", id))
	}
	return nil
}
