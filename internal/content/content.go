// Package content resolves track records in the host library.
package content

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/djmd/internal/store"
)

// Content is the subset of a djmdContent row this module reads.
type Content struct {
	ID         string `json:"id" yaml:"id"`
	FileNameL  string `json:"file_name" yaml:"file_name"`
	FolderPath string `json:"folder_path" yaml:"folder_path"`
	Rating     int64  `json:"rating" yaml:"rating"`
}

// Finder looks up content by case-normalized substring matches.
//
// When several rows match, the first row in storage order wins. Callers
// that need a specific track should pass a pattern unique to it.
type Finder struct {
	q store.Querier
}

// NewFinder returns a Finder reading through q.
func NewFinder(q store.Querier) *Finder {
	return &Finder{q: q}
}

// FindByPath returns the first track whose folder path contains pattern.
func (f *Finder) FindByPath(ctx context.Context, pattern string) (Content, error) {
	return f.findFirst(ctx, "find content by path", "lower(FolderPath)", pattern)
}

// FindByFilename returns the first track whose filename contains pattern.
func (f *Finder) FindByFilename(ctx context.Context, pattern string) (Content, error) {
	return f.findFirst(ctx, "find content by filename", "lower(FileNameL)", pattern)
}

// FindByRef returns the first track whose filename carries the bracketed
// catalogue reference, e.g. "artist - title [918205852].flac".
func (f *Finder) FindByRef(ctx context.Context, ref string) (Content, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "[]")
	if ref == "" {
		return Content{}, store.NewError(store.ErrCodeNotFound, "find content by ref",
			fmt.Errorf("empty reference"))
	}
	return f.findFirst(ctx, "find content by ref", "lower(FileNameL)", "["+ref+"]")
}

// Get returns the track with the given ID.
func (f *Finder) Get(ctx context.Context, id string) (Content, error) {
	row := f.q.QueryRowContext(ctx, `
		SELECT ID, FileNameL, FolderPath, Rating
		FROM djmdContent
		WHERE ID = ?
	`, id)
	c, err := scanContent(row)
	if err != nil {
		return Content{}, store.Classify("get content", err)
	}
	return c, nil
}

func (f *Finder) findFirst(ctx context.Context, op, column, pattern string) (Content, error) {
	like := "%" + escapeLike(Normalize(pattern)) + "%"
	row := f.q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT ID, FileNameL, FolderPath, Rating
		FROM djmdContent
		WHERE %s LIKE ? ESCAPE '\'
		LIMIT 1
	`, column), like)

	c, err := scanContent(row)
	if err != nil {
		err = store.Classify(op, err)
		if store.IsNotFound(err) {
			return Content{}, store.NewError(store.ErrCodeNotFound, op,
				fmt.Errorf("no content matches %q", pattern))
		}
		return Content{}, err
	}
	return c, nil
}

// MaxRating is the highest star rating the host displays.
const MaxRating = 5

// Rate sets the star rating of c. Ratings outside 0..MaxRating are rejected
// before the store is touched. The change counter is not advanced, so the
// host does not pick the update up as a synchronized change.
func Rate(ctx context.Context, q store.Querier, c Content, rating int) error {
	if rating < 0 || rating > MaxRating {
		return store.NewError(store.ErrCodeConfiguration, "rate content",
			fmt.Errorf("rating %d out of range 0..%d", rating, MaxRating))
	}
	res, err := q.ExecContext(ctx, `UPDATE djmdContent SET Rating = ? WHERE ID = ?`, rating, c.ID)
	if err != nil {
		return store.Classify("rate content", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Classify("rate content", err)
	}
	if n == 0 {
		return store.NewError(store.ErrCodeNotFound, "rate content",
			fmt.Errorf("no content with ID %q", c.ID))
	}
	return nil
}

// Normalize folds pattern to the form FileNameL is stored in: NFC, lower case.
func Normalize(pattern string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(pattern))
}

// escapeLike makes LIKE metacharacters in s match literally under ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanContent(row *sql.Row) (Content, error) {
	var c Content
	var fileName, folderPath sql.NullString
	var rating sql.NullInt64
	if err := row.Scan(&c.ID, &fileName, &folderPath, &rating); err != nil {
		return Content{}, err
	}
	c.FileNameL = store.NullStringValue(fileName)
	c.FolderPath = store.NullStringValue(folderPath)
	c.Rating = store.NullInt64Value(rating)
	return c, nil
}
