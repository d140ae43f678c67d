package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Store_And_List_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	records := []SessionRecord{
		{ID: uuid.New(), Endpoint: "127.0.0.1:50001", OpenedAt: at},
		{ID: uuid.New(), Endpoint: "127.0.0.1:50002", OpenedAt: at.Add(time.Second)},
		{ID: uuid.New(), Endpoint: "::1:50003", OpenedAt: at.Add(2 * time.Second)},
	}
	for _, record := range records {
		req.NoError(repository.Store(record))
	}

	fetched, err := repository.List(0)
	req.NoError(err)
	req.Len(fetched, 3)
	req.Equal(
		[]string{"::1:50003", "127.0.0.1:50002", "127.0.0.1:50001"},
		lo.Map(fetched, func(r SessionRecord, _ int) string { return r.Endpoint }),
	)
	req.Equal(records[2].ID, fetched[0].ID)
	req.True(records[2].OpenedAt.Equal(fetched[0].OpenedAt))
	req.Nil(fetched[0].ClosedAt)
}

func Test_List_With_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	for i := range 5 {
		req.NoError(repository.Store(SessionRecord{
			ID:       uuid.New(),
			Endpoint: "127.0.0.1:50000",
			OpenedAt: at.Add(time.Duration(i) * time.Minute),
		}))
	}

	fetched, err := repository.List(2)
	req.NoError(err)
	req.Len(fetched, 2)
	req.True(fetched[0].OpenedAt.After(fetched[1].OpenedAt))
}

func Test_Store_Closing_Overwrites_Opening(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t), slog.Default())

	// Given an open session in the journal
	opened := SessionRecord{ID: uuid.New(), Endpoint: "127.0.0.1:50001", OpenedAt: time.Now().UTC()}
	req.NoError(repository.Store(opened))

	// When the same session is stored again once closed
	closedAt := opened.OpenedAt.Add(3 * time.Second)
	closed := opened
	closed.ClosedAt = &closedAt
	closed.LinesIn = 4
	closed.LinesOut = 7
	closed.Reason = "peer_closed"
	req.NoError(repository.Store(closed))

	// Then a single entry holds the final state
	fetched, err := repository.List(0)
	req.NoError(err)
	req.Len(fetched, 1)
	req.NotNil(fetched[0].ClosedAt)
	req.True(closedAt.Equal(*fetched[0].ClosedAt))
	req.Equal(4, fetched[0].LinesIn)
	req.Equal(7, fetched[0].LinesOut)
	req.Equal("peer_closed", fetched[0].Reason)
}

func Test_List_Empty_Journal(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t), slog.Default())

	fetched, err := repository.List(10)
	req.NoError(err)
	req.Empty(fetched)
}
