package db_test

import (
	"context"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/test"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeTx(t *testing.T) {
	ctx := context.Background()
	database := test.OpenInMemoryDB(t, db.Schema)
	maketx := db.NewMakeTx(database)
	qry := db.New(database)

	tx, err := maketx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertAward(ctx, db.Award{AwardID: "A1", Agency: "NSF", Title: "Discarded"}))
	tx.Discard()

	awards, err := qry.ListAwards(ctx)
	require.NoError(t, err)
	require.Empty(t, awards)

	tx, err = maketx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertAward(ctx, db.Award{AwardID: "A2", Agency: "NSF", Title: "Committed"}))
	require.NoError(t, tx.Commit())
	tx.Discard()

	award, err := qry.GetAward(ctx, "A2")
	require.NoError(t, err)
	require.Equal(t, "Committed", award.Title)
}
