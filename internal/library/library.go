package library

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/djmd/internal/content"
	"github.com/roach88/djmd/internal/ident"
	"github.com/roach88/djmd/internal/playlists"
	"github.com/roach88/djmd/internal/seq"
	"github.com/roach88/djmd/internal/store"
	"github.com/roach88/djmd/internal/tags"
)

// Library is an opened library file.
type Library struct {
	st        *store.Store
	finder    *content.Finder
	counter   *seq.Counter
	tags      *tags.Manager
	playlists *playlists.Manager
	log       *slog.Logger
}

type settings struct {
	store  store.Options
	now    func() time.Time
	log    *slog.Logger
	idOpts []ident.Option
}

// Option configures Open.
type Option func(*settings)

// WithLogger sets the logger operations report to. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock sets the source of created_at/updated_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStoreOptions sets connection pool options.
func WithStoreOptions(opts store.Options) Option {
	return func(s *settings) {
		s.store = opts
	}
}

// WithIDAttempts bounds the number of candidates the playlist identifier
// allocator draws before failing with ALLOCATION_EXHAUSTED.
func WithIDAttempts(n int) Option {
	return func(s *settings) {
		s.idOpts = append(s.idOpts, ident.WithMaxAttempts(n))
	}
}

// WithIdentOptions passes options through to the identifier allocator.
func WithIdentOptions(opts ...ident.Option) Option {
	return func(s *settings) {
		s.idOpts = append(s.idOpts, opts...)
	}
}

// Open opens and authenticates the library file at path. An empty
// passphrase is a CONFIGURATION error; a wrong one surfaces as
// STORE_UNAVAILABLE.
func Open(ctx context.Context, path, passphrase string, opts ...Option) (*Library, error) {
	s := settings{now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	st, err := store.Open(ctx, path, passphrase, s.store)
	if err != nil {
		return nil, err
	}
	s.log.Debug("opened library", "path", path)

	return &Library{
		st:        st,
		finder:    content.NewFinder(st.DB()),
		counter:   seq.New(st.DB()),
		tags:      tags.NewManager(st, s.now, s.log),
		playlists: playlists.NewManager(st, s.now, s.log, playlists.WithIdentOptions(s.idOpts...)),
		log:       s.log,
	}, nil
}

// Close releases every connection.
func (l *Library) Close() error {
	return l.st.Close()
}

// Store exposes the underlying store.
func (l *Library) Store() *store.Store {
	return l.st
}

// FindByPath returns the first track whose folder path contains pattern,
// compared case-insensitively.
func (l *Library) FindByPath(ctx context.Context, pattern string) (content.Content, error) {
	return l.finder.FindByPath(ctx, pattern)
}

// FindByFilename returns the first track whose filename contains pattern,
// compared case-insensitively.
func (l *Library) FindByFilename(ctx context.Context, pattern string) (content.Content, error) {
	return l.finder.FindByFilename(ctx, pattern)
}

// FindByRef returns the first track whose filename carries [ref].
func (l *Library) FindByRef(ctx context.Context, ref string) (content.Content, error) {
	return l.finder.FindByRef(ctx, ref)
}

// Get returns the track with the given ID.
func (l *Library) Get(ctx context.Context, id string) (content.Content, error) {
	return l.finder.Get(ctx, id)
}

// ListTags returns the tags of c ordered by name.
func (l *Library) ListTags(ctx context.Context, c content.Content) ([]tags.Tag, error) {
	return l.tags.List(ctx, c)
}

// HasTag reports whether c carries the tag named name.
func (l *Library) HasTag(ctx context.Context, c content.Content, name string) (bool, error) {
	return l.tags.Exists(ctx, c, name)
}

// Rate sets the 0..5 star rating of c. Ratings are not stamped with a
// change sequence number.
func (l *Library) Rate(ctx context.Context, c content.Content, rating int) error {
	if err := content.Rate(ctx, l.st.DB(), c, rating); err != nil {
		return err
	}
	l.log.Debug("rated content", "content", c.ID, "rating", rating)
	return nil
}

// Tag associates c with the tag named name. See tags.Manager.Tag.
func (l *Library) Tag(ctx context.Context, c content.Content, name string) (usn int64, inserted bool, err error) {
	return l.tags.Tag(ctx, c, name)
}

// Untag removes the association between c and name, if any.
func (l *Library) Untag(ctx context.Context, c content.Content, name string) (int64, error) {
	return l.tags.Untag(ctx, c, name)
}

// ClearTags removes every tag association of c.
func (l *Library) ClearTags(ctx context.Context, c content.Content) (int64, error) {
	return l.tags.Clear(ctx, c)
}

// CreatePlaylist creates a top-level playlist. See playlists.Manager.Create.
func (l *Library) CreatePlaylist(ctx context.Context, name string) (playlists.Playlist, bool, error) {
	return l.playlists.Create(ctx, name)
}

// FindPlaylist returns the playlist named name.
func (l *Library) FindPlaylist(ctx context.Context, name string) (playlists.Playlist, error) {
	return l.playlists.Find(ctx, name)
}

// AddToPlaylist appends contents to the playlist named name. See
// playlists.Manager.Add.
func (l *Library) AddToPlaylist(ctx context.Context, name string, contents ...content.Content) (usn int64, added int, err error) {
	return l.playlists.Add(ctx, name, contents...)
}

// PlaylistMembers returns the memberships of the playlist named name.
func (l *Library) PlaylistMembers(ctx context.Context, name string) ([]playlists.Membership, error) {
	return l.playlists.Members(ctx, name)
}

// Checkpoint flushes the write-ahead log into the main file. A failure is
// reported and not retried; committed writes are unaffected.
func (l *Library) Checkpoint(ctx context.Context) (store.CheckpointResult, error) {
	res, err := l.st.Checkpoint(ctx)
	if err != nil {
		l.log.Warn("checkpoint failed", "error", err)
		return res, err
	}
	l.log.Debug("checkpointed", "log_frames", res.LogFrames, "checkpointed_frames", res.CheckpointedFrames)
	return res, nil
}

// CurrentUSN reads the change counter without advancing it.
func (l *Library) CurrentUSN(ctx context.Context) (int64, error) {
	return l.counter.Current(ctx)
}
