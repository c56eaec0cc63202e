package postgres

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agent0/runner/internal/domain"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// nullIfEmpty returns nil for empty strings (for nullable UUID columns).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// derefString returns the value of a nullable text/UUID column.
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullTime converts a zero time to nil for nullable DB columns.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// notFoundWrap checks whether err is pgx.ErrNoRows and, if so, wraps
// domain.ErrNotFound with the given message. Otherwise it wraps the
// original error.
func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	if isInvalidUUID(err) {
		// A malformed id cannot name an existing row.
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isInvalidUUID reports whether err is invalid_text_representation, which
// Postgres raises for malformed UUID literals.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// isUntranslatable reports whether err is one of the character errors
// Postgres raises for text it cannot store, such as a NUL in jsonb.
func isUntranslatable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "22P05" || pgErr.Code == "22021")
}

var (
	nulEscape         = []byte(`\u0000`)
	replacementEscape = []byte(`\ufffd`)
)

// stripNUL rewrites every \u0000 escape in a JSON document to U+FFFD, which
// jsonb accepts. An escape preceded by an escaped backslash is literal text
// and is left alone.
func stripNUL(doc []byte) []byte {
	if !bytes.Contains(doc, nulEscape) {
		return doc
	}
	out := make([]byte, 0, len(doc))
	for i := 0; i < len(doc); {
		if doc[i] != '\\' {
			out = append(out, doc[i])
			i++
			continue
		}
		if bytes.HasPrefix(doc[i:], nulEscape) {
			out = append(out, replacementEscape...)
			i += len(nulEscape)
			continue
		}
		// Any other escape: copy the backslash and the escaped byte together.
		end := min(i+2, len(doc))
		out = append(out, doc[i:end]...)
		i = end
	}
	return out
}

// execExpectOne verifies that an Exec affected exactly one row. If not
// (and err is nil), it returns domain.ErrNotFound with the given message.
func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", domain.ErrNotFound)
	}
	return nil
}
