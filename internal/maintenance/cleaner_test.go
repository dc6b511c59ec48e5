package maintenance

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/crm-records/internal/store"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return now.AddDate(0, 0, -n) }

func newCleaner(t *testing.T, data map[string]map[string]store.Document, opts ...Option) (*Cleaner, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore(data, nil)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewCleaner(s, opts...), s
}

func ids(t *testing.T, s store.Store, collection string) []string {
	t.Helper()
	recs, err := s.Query(context.Background(), collection)
	require.NoError(t, err)
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	sort.Strings(out)
	return out
}

func TestCleanupOldRecords(t *testing.T) {
	c, s := newCleaner(t, map[string]map[string]store.Document{
		store.Events: {
			"old":     {"createdAt": daysAgo(45)},
			"recent":  {"createdAt": daysAgo(3)},
			"string":  {"createdAt": daysAgo(60).Format(time.RFC3339)},
			"undated": {"title": "no timestamp"},
		},
		store.Notifications: {
			"n-old": {"createdAt": daysAgo(31)},
		},
		store.ActivityLogs: {
			"a-old": {"createdAt": daysAgo(100)},
			"a-new": {"createdAt": daysAgo(1)},
		},
		store.Clients: {
			"ancient-client": {"name": "Acme", "createdAt": daysAgo(400)},
		},
	})

	deleted, err := c.CleanupOldRecords(context.Background(), DefaultRetentionDays)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)

	assert.Equal(t, []string{"recent", "undated"}, ids(t, s, store.Events))
	assert.Empty(t, ids(t, s, store.Notifications))
	assert.Equal(t, []string{"a-new"}, ids(t, s, store.ActivityLogs))
	assert.Equal(t, []string{"ancient-client"}, ids(t, s, store.Clients), "clients are never aged out")
}

func TestCleanupOldRecords_RejectsNegativeAge(t *testing.T) {
	c, _ := newCleaner(t, nil)
	_, err := c.CleanupOldRecords(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCleanupOrphanedRecords(t *testing.T) {
	c, s := newCleaner(t, map[string]map[string]store.Document{
		store.Clients: {
			"c1": {"name": "Acme"},
		},
		store.Events: {
			"linked":   {"clientId": "c1"},
			"orphan":   {"clientId": "gone"},
			"unlinked": {"title": "personal"},
			"blank":    {"clientId": ""},
		},
	})

	deleted, err := c.CleanupOrphanedRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"blank", "linked", "unlinked"}, ids(t, s, store.Events))
	assert.Equal(t, []string{"c1"}, ids(t, s, store.Clients))
}

func TestCleanupDuplicates_KeepsNewest(t *testing.T) {
	c, s := newCleaner(t, map[string]map[string]store.Document{
		store.Clients: {
			"dup-old":    {"email": "jane@acme.test", "createdAt": daysAgo(10)},
			"dup-newest": {"email": "jane@acme.test", "createdAt": daysAgo(1)},
			"dup-mid":    {"email": "jane@acme.test", "createdAt": daysAgo(5).Format(time.RFC3339)},
			"unique":     {"email": "bob@acme.test", "createdAt": daysAgo(7)},
			"no-email":   {"name": "walk-in", "createdAt": daysAgo(2)},
			"no-email-2": {"name": "walk-in", "createdAt": daysAgo(3)},
		},
	})

	deleted, err := c.CleanupDuplicates(context.Background(), store.Clients, "email")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, []string{"dup-newest", "no-email", "no-email-2", "unique"}, ids(t, s, store.Clients))
}

func TestCleanupDuplicates_RequiresField(t *testing.T) {
	c, _ := newCleaner(t, nil)
	_, err := c.CleanupDuplicates(context.Background(), store.Clients, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeleteCollections(t *testing.T) {
	c, s := newCleaner(t, map[string]map[string]store.Document{
		store.Notifications: {"n1": {}, "n2": {}},
		store.ActivityLogs:  {"a1": {}},
		store.Clients:       {"c1": {"name": "Acme"}},
	}, WithWorkers(2))

	deleted, err := c.DeleteCollections(context.Background(), store.Notifications, store.ActivityLogs)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Empty(t, ids(t, s, store.Notifications))
	assert.Empty(t, ids(t, s, store.ActivityLogs))
	assert.Equal(t, []string{"c1"}, ids(t, s, store.Clients))

	deleted, err = c.DeleteCollection(context.Background(), store.Clients)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = c.DeleteCollection(context.Background(), "never-created")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

// failingStore fails deletions of one id.
type failingStore struct {
	store.Store
	failID string
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Delete(ctx context.Context, collection, id string) error {
	if id == f.failID {
		return errDiskFull
	}
	return f.Store.Delete(ctx, collection, id)
}

func TestDeleteCollections_AggregateFailure(t *testing.T) {
	mem := store.NewMemStore(map[string]map[string]store.Document{
		store.Notifications: {"n1": {}, "n2": {}, "n3": {}},
	}, nil)
	c := NewCleaner(&failingStore{Store: mem, failID: "n2"}, WithWorkers(1))

	deleted, err := c.DeleteCollection(context.Background(), store.Notifications)
	require.ErrorIs(t, err, errDiskFull)
	assert.Less(t, deleted, 3)
}

func TestDeleteAll_HonoursCancellation(t *testing.T) {
	c, s := newCleaner(t, map[string]map[string]store.Document{
		store.Notifications: {"n1": {}, "n2": {}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.DeleteCollection(ctx, store.Notifications)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, ids(t, s, store.Notifications), 2)
}

func TestValidateDataIntegrity(t *testing.T) {
	c, _ := newCleaner(t, map[string]map[string]store.Document{
		store.Clients: {
			"good":     {"name": "Acme", "email": "hi@acme.test", "createdAt": daysAgo(1), "updatedAt": daysAgo(1)},
			"no-email": {"name": "Globex", "createdAt": daysAgo(1), "updatedAt": daysAgo(1)},
		},
		store.Events: {
			"undated":  {"title": "x", "createdAt": daysAgo(1)},
			"bad-date": {"title": "y", "createdAt": "last tuesday", "updatedAt": daysAgo(1)},
		},
		store.Notifications: {
			"fine": {"createdAt": daysAgo(1).Format(time.RFC3339), "updatedAt": daysAgo(1).Format(time.RFC3339)},
		},
	})

	issues, err := c.ValidateDataIntegrity(context.Background())
	require.NoError(t, err)

	sort.Slice(issues, func(i, j int) bool { return issues[i].DocumentID < issues[j].DocumentID })
	assert.Equal(t, []Issue{
		{Collection: store.Events, DocumentID: "bad-date", Kind: InvalidCreatedAt},
		{Collection: store.Clients, DocumentID: "no-email", Kind: MissingRequired},
		{Collection: store.Events, DocumentID: "undated", Kind: MissingTimestamps},
	}, issues)
}

func TestValidateDataIntegrity_MissingEmailReportedOnce(t *testing.T) {
	c, _ := newCleaner(t, map[string]map[string]store.Document{
		store.Clients: {
			"c1": {"name": "Initech", "createdAt": daysAgo(1), "updatedAt": daysAgo(1)},
		},
	})

	issues, err := c.ValidateDataIntegrity(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, Issue{Collection: store.Clients, DocumentID: "c1", Kind: MissingRequired}, issues[0])
}
