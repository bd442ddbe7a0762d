package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutor(t *testing.T) {
	db := &sql.DB{}
	ctx := context.Background()

	assert.Same(t, db, Executor(ctx, db))
	assert.Equal(t, ctx, WithTx(ctx, nil), "nil transaction leaves ctx untouched")

	tx := &sql.Tx{}
	txCtx := WithTx(ctx, tx)
	got, ok := From(txCtx)
	assert.True(t, ok)
	assert.Same(t, tx, got)
	assert.Same(t, tx, Executor(txCtx, db))
}
