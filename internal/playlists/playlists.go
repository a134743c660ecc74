// Package playlists creates playlists and appends tracks to them.
//
// Playlists are unique by name. Memberships form a set per (playlist,
// content) and carry a 1-based TrackNo; new members are appended after the
// current maximum and existing TrackNo values are never renumbered.
package playlists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/djmd/internal/content"
	"github.com/roach88/djmd/internal/ident"
	"github.com/roach88/djmd/internal/seq"
	"github.com/roach88/djmd/internal/store"
)

// RootID is the ParentID of top-level playlists.
const RootID = "root"

// Playlist is a djmdPlaylist row.
type Playlist struct {
	ID        string `json:"id" yaml:"id"`
	Seq       int64  `json:"seq" yaml:"seq"`
	Name      string `json:"name" yaml:"name"`
	Attribute int64  `json:"attribute" yaml:"attribute"`
	ParentID  string `json:"parent_id" yaml:"parent_id"`
	USN       int64  `json:"usn" yaml:"usn"`
}

// Membership is a djmdSongPlaylist row.
type Membership struct {
	ID         string `json:"id" yaml:"id"`
	PlaylistID string `json:"playlist_id" yaml:"playlist_id"`
	ContentID  string `json:"content_id" yaml:"content_id"`
	TrackNo    int64  `json:"track_no" yaml:"track_no"`
	USN        int64  `json:"usn" yaml:"usn"`
}

var errNoChange = errors.New("no change")

// Manager writes playlists and memberships.
type Manager struct {
	st      *store.Store
	now     func() time.Time
	log     *slog.Logger
	idOpts  []ident.Option
	counter seq.Source
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdentOptions configures the playlist identifier allocator.
func WithIdentOptions(opts ...ident.Option) Option {
	return func(m *Manager) {
		m.idOpts = append(m.idOpts, opts...)
	}
}

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

// Create makes a top-level playlist named name, positioned after every
// existing top-level playlist. If a playlist with that name already exists
// nothing is written and the existing one is returned with created=false.
func (m *Manager) Create(ctx context.Context, name string) (pl Playlist, created bool, err error) {
	err = m.st.WithTx(ctx, func(tx *sql.Tx) error {
		// The transaction already holds the write lock, so the name cannot
		// appear between this check and the insert.
		if _, err := findPlaylist(ctx, tx, name); err == nil {
			return errNoChange
		} else if !store.IsNotFound(err) {
			return err
		}

		id, err := ident.New(tx, m.idOpts...).NextString(ctx, "djmdPlaylist")
		if err != nil {
			return err
		}
		usn, err := m.counter(tx).Next(ctx)
		if err != nil {
			return err
		}

		ts := store.Timestamp(m.now())
		res, err := tx.ExecContext(ctx, `
			INSERT INTO djmdPlaylist (Seq, ID, Name, Attribute, ParentID, UUID, rb_local_usn, created_at, updated_at)
			SELECT
				COALESCE((SELECT MAX(Seq) FROM djmdPlaylist WHERE ParentID = ?), 0) + 1,
				?, ?, 0, ?, ?, ?, ?, ?
			WHERE NOT EXISTS (SELECT 1 FROM djmdPlaylist WHERE Name = ?)
		`, RootID, id, name, RootID, uuid.NewString(), usn, ts, ts, name)
		if err != nil {
			return store.Classify("create playlist", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return store.Classify("create playlist", err)
		}
		if n == 0 {
			return errNoChange
		}
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		m.log.Debug("playlist already exists", "name", name)
	case err != nil:
		return Playlist{}, false, err
	default:
		created = true
	}

	pl, err = m.Find(ctx, name)
	if err != nil {
		return Playlist{}, false, err
	}
	if created {
		m.log.Debug("created playlist", "name", name, "id", pl.ID, "seq", pl.Seq, "usn", pl.USN)
	}
	return pl, created, nil
}

// Find returns the playlist named name.
func (m *Manager) Find(ctx context.Context, name string) (Playlist, error) {
	return findPlaylist(ctx, m.st.DB(), name)
}

// Add appends contents to the playlist named name.
//
// Contents already in the playlist are skipped, and so are duplicates in
// the argument list. The remaining candidates are ranked by rating
// (highest first), then by creation time (newest first), and receive
// TrackNo values max+1, max+2, ... where max is the playlist's current
// highest TrackNo (0 when empty). All inserted rows share one change
// sequence number, which is returned along with the number of rows added.
// When nothing is added the counter is not advanced and usn is 0.
//
// An unknown playlist name or content ID is a NOT_FOUND error and adds nothing.
func (m *Manager) Add(ctx context.Context, name string, contents ...content.Content) (usn int64, added int, err error) {
	ids := uniqueIDs(contents)
	if len(ids) == 0 {
		return 0, 0, nil
	}

	err = m.st.WithTx(ctx, func(tx *sql.Tx) error {
		pl, err := findPlaylist(ctx, tx, name)
		if err != nil {
			return err
		}
		candidates, err := rankCandidates(ctx, tx, pl.ID, ids)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return errNoChange
		}

		var maxTrack int64
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(TrackNo), 0) FROM djmdSongPlaylist WHERE PlaylistID = ?
		`, pl.ID).Scan(&maxTrack); err != nil {
			return store.Classify("add to playlist", err)
		}

		next, err := m.counter(tx).Next(ctx)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO djmdSongPlaylist (ID, PlaylistID, ContentID, UUID, created_at, updated_at, rb_local_usn, TrackNo)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return store.Classify("add to playlist", err)
		}
		defer stmt.Close()

		ts := store.Timestamp(m.now())
		for i, contentID := range candidates {
			trackNo := maxTrack + int64(i) + 1
			if _, err := stmt.ExecContext(ctx, uuid.NewString(), pl.ID, contentID, uuid.NewString(), ts, ts, next, trackNo); err != nil {
				return store.Classify("add to playlist", err)
			}
		}

		usn = next
		added = len(candidates)
		return nil
	})
	if errors.Is(err, errNoChange) {
		m.log.Debug("playlist already contains content", "playlist", name, "contents", len(ids))
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	m.log.Debug("added to playlist", "playlist", name, "added", added, "usn", usn)
	return usn, added, nil
}

// Members returns the memberships of the playlist named name, ordered by TrackNo.
func (m *Manager) Members(ctx context.Context, name string) ([]Membership, error) {
	pl, err := m.Find(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := m.st.DB().QueryContext(ctx, `
		SELECT ID, PlaylistID, ContentID, TrackNo, rb_local_usn
		FROM djmdSongPlaylist
		WHERE PlaylistID = ?
		ORDER BY TrackNo, ID
	`, pl.ID)
	if err != nil {
		return nil, store.Classify("list playlist members", err)
	}
	defer rows.Close()

	members := []Membership{}
	for rows.Next() {
		var mb Membership
		var trackNo, usn sql.NullInt64
		if err := rows.Scan(&mb.ID, &mb.PlaylistID, &mb.ContentID, &trackNo, &usn); err != nil {
			return nil, store.Classify("list playlist members", err)
		}
		mb.TrackNo = store.NullInt64Value(trackNo)
		mb.USN = store.NullInt64Value(usn)
		members = append(members, mb)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list playlist members", err)
	}
	return members, nil
}

func findPlaylist(ctx context.Context, q store.Querier, name string) (Playlist, error) {
	var pl Playlist
	var seqNo, attr, usn sql.NullInt64
	var parent sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT ID, Seq, Name, Attribute, ParentID, rb_local_usn
		FROM djmdPlaylist
		WHERE Name = ?
		LIMIT 1
	`, name).Scan(&pl.ID, &seqNo, &pl.Name, &attr, &parent, &usn)
	if err != nil {
		err = store.Classify("find playlist", err)
		if store.IsNotFound(err) {
			return Playlist{}, store.NewError(store.ErrCodeNotFound, "find playlist",
				fmt.Errorf("no playlist named %q", name))
		}
		return Playlist{}, err
	}
	pl.Seq = store.NullInt64Value(seqNo)
	pl.Attribute = store.NullInt64Value(attr)
	pl.ParentID = store.NullStringValue(parent)
	pl.USN = store.NullInt64Value(usn)
	return pl, nil
}

// rankCandidates returns the IDs among ids that are not yet members of
// playlistID, in insertion order. Every ID must exist in djmdContent.
func rankCandidates(ctx context.Context, q store.Querier, playlistID string, ids []string) ([]string, error) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, playlistID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.ID,
			EXISTS (SELECT 1 FROM djmdSongPlaylist AS sp WHERE sp.PlaylistID = ? AND sp.ContentID = c.ID)
		FROM djmdContent AS c
		WHERE c.ID IN (%s)
		ORDER BY c.Rating DESC, c.created_at DESC
	`, placeholders(len(ids))), args...)
	if err != nil {
		return nil, store.Classify("rank playlist candidates", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	var candidates []string
	for rows.Next() {
		var id string
		var member bool
		if err := rows.Scan(&id, &member); err != nil {
			return nil, store.Classify("rank playlist candidates", err)
		}
		found[id] = true
		if !member {
			candidates = append(candidates, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("rank playlist candidates", err)
	}

	for _, id := range ids {
		if !found[id] {
			return nil, store.NewError(store.ErrCodeNotFound, "rank playlist candidates",
				fmt.Errorf("no content with ID %q", id))
		}
	}
	return candidates, nil
}

func uniqueIDs(contents []content.Content) []string {
	seen := make(map[string]bool, len(contents))
	ids := make([]string, 0, len(contents))
	for _, c := range contents {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
	}
	return ids
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
