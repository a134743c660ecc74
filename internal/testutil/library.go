package testutil

import (
	"database/sql"
	_ "embed"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// Schema is the subset of the host library schema the fixtures create.
//
//go:embed schema.sql
var Schema string

// Passphrase keys fixture libraries. Plain SQLite builds ignore it.
const Passphrase = "fixture-passphrase"

// CounterStart is the change counter value of a freshly seeded library.
const CounterStart int64 = 1000

// Well-known fixture rows.
const (
	// GlueID is the track the tag scenarios run against; it starts untagged.
	GlueID  = "43970339"
	GlueRef = "918205852"

	SoUKnoID    = "51234001" // rating 5, tagged "dark" and "vocals"
	GoodLiesID  = "51234002" // rating 5, newer than SoUKno, member of Oefenen
	DelilahID   = "51234003" // rating 0, member of Oefenen
	PercentID   = "51234004" // filename contains a literal '%' and '_'
	OefenenID   = "2001"
	WarmupID    = "2002"
	NestedID    = "2003"
	EatmosTagID = "1001"
)

const seedSQL = `
INSERT INTO agentRegistry (registry_id, int_1, created_at, updated_at)
VALUES ('localUpdateCount', 1000, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00');

INSERT INTO djmdContent (ID, FolderPath, FileNameL, Title, Rating, UUID, rb_local_usn, created_at, updated_at) VALUES
('43970339', '/Users/dj/Music/Bicep/Bicep - Glue [918205852].flac', 'bicep - glue [918205852].flac', 'Glue', 3, 'c-1', 10, '2024-01-10 09:00:00.000 +00:00', '2024-01-10 09:00:00.000 +00:00'),
('51234001', '/Users/dj/Music/Overmono/Overmono - So U Kno [771100231].mp3', 'overmono - so u kno [771100231].mp3', 'So U Kno', 5, 'c-2', 11, '2024-03-01 09:00:00.000 +00:00', '2024-03-01 09:00:00.000 +00:00'),
('51234002', '/Users/dj/Music/Overmono/Overmono - Good Lies [771100232].mp3', 'overmono - good lies [771100232].mp3', 'Good Lies', 5, 'c-3', 12, '2024-05-01 09:00:00.000 +00:00', '2024-05-01 09:00:00.000 +00:00'),
('51234003', '/Users/dj/Music/Fred again../Fred again.. - Delilah [650000001].wav', 'fred again.. - delilah [650000001].wav', 'Delilah', 0, 'c-4', 13, '2023-12-01 09:00:00.000 +00:00', '2023-12-01 09:00:00.000 +00:00'),
('51234004', '/Users/dj/Music/Various/Track_100%.mp3', 'track_100%.mp3', 'Track 100', 2, 'c-5', 14, '2023-06-01 09:00:00.000 +00:00', '2023-06-01 09:00:00.000 +00:00');

INSERT INTO djmdMyTag (ID, Seq, Name, Attribute, ParentID, UUID, rb_local_usn, created_at, updated_at) VALUES
('1001', 1, 'eatmos', 0, 'root', 't-1', 20, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00'),
('1002', 2, 'vocals', 0, 'root', 't-2', 21, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00'),
('1003', 3, 'dark', 0, 'root', 't-3', 22, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00'),
('1004', 4, 'peak time', 0, 'root', 't-4', 23, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00');

INSERT INTO djmdSongMyTag (ID, MyTagID, ContentID, UUID, rb_local_usn, created_at, updated_at) VALUES
('st-1', '1003', '51234001', 'st-u-1', 30, '2024-03-02 00:00:00.000 +00:00', '2024-03-02 00:00:00.000 +00:00'),
('st-2', '1002', '51234001', 'st-u-2', 31, '2024-03-02 00:00:00.000 +00:00', '2024-03-02 00:00:00.000 +00:00');

INSERT INTO djmdPlaylist (ID, Seq, Name, Attribute, ParentID, UUID, rb_local_usn, created_at, updated_at) VALUES
('2001', 1, 'Oefenen', 0, 'root', 'p-1', 40, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00'),
('2002', 2, 'Warmup', 1, 'root', 'p-2', 41, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00'),
('2003', 7, 'Nested', 0, '2002', 'p-3', 42, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00');

INSERT INTO djmdSongPlaylist (ID, PlaylistID, ContentID, TrackNo, UUID, rb_local_usn, created_at, updated_at) VALUES
('sp-1', '2001', '51234002', 1, 'sp-u-1', 50, '2024-05-02 00:00:00.000 +00:00', '2024-05-02 00:00:00.000 +00:00'),
('sp-2', '2001', '51234003', 2, 'sp-u-2', 51, '2024-05-02 00:00:00.000 +00:00', '2024-05-02 00:00:00.000 +00:00');
`

// NewLibraryFile creates a seeded library database in a temp dir and
// returns its path. The file is created with the plain driver, the way the
// host application would have left it on disk.
func NewLibraryFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	if _, err := db.Exec(seedSQL); err != nil {
		t.Fatalf("seed fixture db: %v", err)
	}
	return path
}

// NewEmptyLibraryFile creates a library with the schema and the change
// counter row but no content, tags or playlists.
func NewEmptyLibraryFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO agentRegistry (registry_id, int_1, created_at, updated_at)
		VALUES ('localUpdateCount', ?, '2024-01-01 00:00:00.000 +00:00', '2024-01-01 00:00:00.000 +00:00')
	`, CounterStart); err != nil {
		t.Fatalf("seed change counter: %v", err)
	}
	return path
}

// CounterValue reads the change counter directly.
func CounterValue(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	var v int64
	if err := db.QueryRow(
		`SELECT int_1 FROM agentRegistry WHERE registry_id = 'localUpdateCount'`,
	).Scan(&v); err != nil {
		t.Fatalf("read change counter: %v", err)
	}
	return v
}

// CountRows runs a COUNT(*) query and returns the result.
func CountRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

// Exec runs a statement against the fixture and fails the test on error.
func Exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
