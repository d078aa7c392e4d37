package dberr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "busy database is locking",
			err:  sqlite3.Error{Code: sqlite3.ErrBusy},
			want: Locking,
		},
		{
			name: "locked table is locking",
			err:  sqlite3.Error{Code: sqlite3.ErrLocked},
			want: Locking,
		},
		{
			name: "wrapped busy error is locking",
			err:  fmt.Errorf("commit: %w", sqlite3.Error{Code: sqlite3.ErrBusy}),
			want: Locking,
		},
		{
			name: "no rows is not found",
			err:  sql.ErrNoRows,
			want: NotFound,
		},
		{
			name: "deadline is connection",
			err:  context.DeadlineExceeded,
			want: Connection,
		},
		{
			name: "constraint violation is query",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint},
			want: Query,
		},
		{
			name: "arbitrary error is query",
			err:  errors.New("syntax error"),
			want: Query,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify("test.op", tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.want, classified.Kind)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify("test.op", nil))
}

func TestClassifyAlreadyClassified(t *testing.T) {
	original := New(Migration, "migrate.Run", errors.New("boom"))
	classified := Classify("other.op", fmt.Errorf("wrapped: %w", original))

	assert.Equal(t, Migration, classified.Kind)
	assert.Equal(t, "migrate.Run", classified.Op)
}

func TestErrorUnwrap(t *testing.T) {
	cause := sqlite3.Error{Code: sqlite3.ErrBusy}
	err := Classify("content.Save", cause)

	assert.True(t, errors.Is(err, error(cause)))
	assert.Contains(t, err.Error(), "content.Save")
	assert.Contains(t, err.Error(), "locking")
}

func TestKindHelpers(t *testing.T) {
	locking := New(Locking, "op", nil)
	notFound := New(NotFound, "op", nil)

	assert.True(t, IsLocking(locking))
	assert.False(t, IsLocking(notFound))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(errors.New("plain")))

	kind, ok := KindOf(fmt.Errorf("outer: %w", locking))
	require.True(t, ok)
	assert.Equal(t, Locking, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "locking", Locking.String())
	assert.Equal(t, "not found", NotFound.String())
	assert.Equal(t, "migration", Migration.String())
}
