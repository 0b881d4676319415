package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	columns := []string{"id", "doctor_id", "category", "symptom", "keywords", "advice", "question", "answer", "priority", "is_active"}
	mock.ExpectQuery("FROM knowledge_entries").
		WithArgs("doc-1", "medical").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("kb-1", "doc-1", "medical", "Fever", []string{"fever", "temperature"}, "Drink fluids", "", "", 2, true))

	store := NewPostgresStore(mock)
	entries, err := store.Entries(context.Background(), "doc-1", CategoryMedical)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryMedical, entries[0].Category)
	assert.Equal(t, []string{"fever", "temperature"}, entries[0].Keywords)
	assert.Equal(t, 2, entries[0].Priority)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedStoreReadThrough(t *testing.T) {
	mr, client := newRedis(t)
	backing := &fakeStore{entries: map[Category][]Entry{
		CategoryAdministrative: {{ID: "faq-1", Question: "What are the consultation fees?", Answer: "500", Active: true}},
	}}
	store := NewCachedStore(backing, client, time.Minute)
	ctx := context.Background()

	first, err := store.Entries(ctx, "doc-1", CategoryAdministrative)
	require.NoError(t, err)
	second, err := store.Entries(ctx, "doc-1", CategoryAdministrative)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.calls)
	assert.True(t, mr.Exists("kb:entries:doc-1:administrative"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Entries(ctx, "doc-1", CategoryAdministrative)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls)
}

func TestCachedStoreInvalidate(t *testing.T) {
	mr, client := newRedis(t)
	backing := &fakeStore{entries: map[Category][]Entry{}}
	store := NewCachedStore(backing, client, time.Minute)
	ctx := context.Background()

	_, err := store.Entries(ctx, "doc-1", CategoryMedical)
	require.NoError(t, err)
	require.True(t, mr.Exists("kb:entries:doc-1:medical"))

	require.NoError(t, store.Invalidate(ctx, "doc-1"))
	assert.False(t, mr.Exists("kb:entries:doc-1:medical"))
}

func TestPostgresStoreAdd(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	entry := Entry{
		DoctorID: "doc-1",
		Category: CategoryAdministrative,
		Question: "What are the clinic timings?",
		Answer:   "9 AM to 6 PM, Monday to Saturday",
		Priority: 3,
		Active:   true,
	}
	mock.ExpectQuery("INSERT INTO knowledge_entries").
		WithArgs("doc-1", "administrative", nil, pgxmock.AnyArg(), nil,
			entry.Question, entry.Answer, 3, true).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("kb-9"))

	id, err := NewPostgresStore(mock).Add(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, "kb-9", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAddRejectsInvalidEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresStore(mock).Add(context.Background(), Entry{DoctorID: "doc-1", Category: CategoryMedical, Advice: "Rest"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		ok    bool
	}{
		{"medical", Entry{DoctorID: "d", Category: CategoryMedical, Keywords: []string{"fever"}, Advice: "Fluids"}, true},
		{"medical without keywords", Entry{DoctorID: "d", Category: CategoryMedical, Advice: "Fluids"}, false},
		{"administrative", Entry{DoctorID: "d", Category: CategoryAdministrative, Question: "Fees?", Answer: "500"}, true},
		{"administrative without answer", Entry{DoctorID: "d", Category: CategoryAdministrative, Question: "Fees?"}, false},
		{"missing doctor", Entry{Category: CategoryAdministrative, Question: "Fees?", Answer: "500"}, false},
		{"unknown category", Entry{DoctorID: "d", Category: "billing"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidEntry)
			}
		})
	}
}
