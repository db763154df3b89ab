package sqlstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/ordinal/order"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDomain(t *testing.T, scope string) order.Domain {
	t.Helper()
	d, err := order.NewDomain("membership_plan", scope)
	require.NoError(t, err)
	return d
}

// insertRaw writes a row directly, bypassing the orderer, to build drifted domains.
func insertRaw(t *testing.T, s *Store, d order.Domain, id string, position int, created time.Time) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO ordered_items (domain, id, position, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`, d.Key(), id, position, created.UTC().Format(timeLayout), created.UTC().Format(timeLayout))
	require.NoError(t, err)
}

// layout returns the ids of the domain in position order and fails unless
// positions are exactly 0..N-1.
func layout(t *testing.T, s *Store, d order.Domain) []string {
	t.Helper()
	items, err := s.Items(t.Context(), d)
	require.NoError(t, err)
	ids := make([]string, len(items))
	for i, item := range items {
		require.Equal(t, i, item.Position, "item %s", item.ID)
		ids[i] = item.ID
	}
	return ids
}
