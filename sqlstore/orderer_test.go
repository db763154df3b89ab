package sqlstore

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jacentio/ordinal/order"
)

func seedDomain(t *testing.T, o *order.Orderer, d order.Domain, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := o.Create(t.Context(), d, id)
		require.NoError(t, err)
	}
}

func TestOrderer_CreateAppends(t *testing.T) {
	s := createTestStore(t)
	o := order.New(s, nil)
	d := testDomain(t, "company-1")

	for i, id := range []string{"A", "B", "C"} {
		res, err := o.Create(t.Context(), d, id)
		require.NoError(t, err)
		assert.Equal(t, i, res.Item.Position)
	}
	assert.Equal(t, []string{"A", "B", "C"}, layout(t, s, d))

	_, err := o.Create(t.Context(), d, "B")
	assert.ErrorIs(t, err, order.ErrAlreadyExists)
}

func TestOrderer_MoveScenarios(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		target int
		want   []string
	}{
		{"down", "A", 2, []string{"B", "C", "A", "D"}},
		{"up", "D", 1, []string{"A", "D", "B", "C"}},
		{"same position", "C", 2, []string{"A", "B", "C", "D"}},
		{"to front", "C", 0, []string{"C", "A", "B", "D"}},
		{"past end", "A", math.MaxInt, []string{"B", "C", "D", "A"}},
		{"negative", "D", -5, []string{"D", "A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			o := order.New(s, nil)
			d := testDomain(t, "company-1")
			seedDomain(t, o, d, "A", "B", "C", "D")

			_, err := o.Move(t.Context(), d, tt.id, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, layout(t, s, d))
		})
	}
}

func TestOrderer_MoveIsolatedPerDomain(t *testing.T) {
	s := createTestStore(t)
	o := order.New(s, nil)
	d1 := testDomain(t, "company-1")
	d2 := testDomain(t, "company-2")
	seedDomain(t, o, d1, "A", "B", "C")
	seedDomain(t, o, d2, "X", "Y")

	_, err := o.Move(t.Context(), d1, "C", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A", "B"}, layout(t, s, d1))
	assert.Equal(t, []string{"X", "Y"}, layout(t, s, d2))
}

func TestOrderer_MoveUnknownItem(t *testing.T) {
	s := createTestStore(t)
	o := order.New(s, nil)
	d := testDomain(t, "company-1")
	seedDomain(t, o, d, "A")

	_, err := o.Move(t.Context(), d, "Z", 0)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderer_RemoveCompacts(t *testing.T) {
	s := createTestStore(t)
	o := order.New(s, nil)
	d := testDomain(t, "company-1")
	seedDomain(t, o, d, "A", "B", "C")

	res, err := o.Remove(t.Context(), d, "B")
	require.NoError(t, err)
	assert.Equal(t, "B", res.Item.ID)
	assert.Equal(t, []order.Change{{ID: "C", From: 2, To: 1}}, res.Changes)

	assert.Equal(t, []string{"A", "C"}, layout(t, s, d))

	res, err = o.Create(t.Context(), d, "D")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Item.Position)
}

func TestOrderer_ResequenceRepairsGapsAndDuplicates(t *testing.T) {
	s := createTestStore(t)
	o := order.New(s, nil)
	d := testDomain(t, "company-1")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	insertRaw(t, s, d, "A", 0, base)
	insertRaw(t, s, d, "C", 2, base.Add(2*time.Second))
	insertRaw(t, s, d, "B", 2, base.Add(time.Second))
	insertRaw(t, s, d, "D", 7, base.Add(3*time.Second))

	report, err := o.Check(t.Context(), d)
	require.NoError(t, err)
	assert.False(t, report.Dense)

	res, err := o.Resequence(t.Context(), d)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Changes)
	assert.Equal(t, []string{"A", "B", "C", "D"}, layout(t, s, d))

	// A dense domain is left alone.
	res, err = o.Resequence(t.Context(), d)
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
}

func TestOrderer_MoveHealsDriftedDomain(t *testing.T) {
	s := createTestStore(t)
	o := order.New(s, nil)
	d := testDomain(t, "company-1")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	insertRaw(t, s, d, "A", 3, base)
	insertRaw(t, s, d, "B", 9, base)
	insertRaw(t, s, d, "C", 12, base)

	_, err := o.Move(t.Context(), d, "C", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, layout(t, s, d))
}

func TestOrderer_RepairRewritesOnlyDriftedDomains(t *testing.T) {
	s := createTestStore(t)
	o := order.New(s, nil)
	dense := testDomain(t, "company-1")
	drifted := testDomain(t, "company-2")
	seedDomain(t, o, dense, "A", "B")
	insertRaw(t, s, drifted, "X", 4, time.Now())
	insertRaw(t, s, drifted, "Y", 8, time.Now())

	repaired, err := o.Repair(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, []string{"X", "Y"}, layout(t, s, drifted))
	assert.Equal(t, []string{"A", "B"}, layout(t, s, dense))
}

func TestOrderer_ConcurrentCreatesStayDense(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "test.db")
	// Two stores on one file behave like two processes.
	s1, err := Open(path)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	d := testDomain(t, "company-1")
	orderers := []*order.Orderer{order.New(s1, nil), order.New(s2, nil)}

	const perStore = 10
	var wg sync.WaitGroup
	errs := make(chan error, perStore*len(orderers))
	for n, o := range orderers {
		for i := 0; i < perStore; i++ {
			wg.Add(1)
			go func(o *order.Orderer, id string) {
				defer wg.Done()
				_, err := o.Create(t.Context(), d, id)
				errs <- err
			}(o, fmt.Sprintf("item-%d-%d", n, i))
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, layout(t, s1, d), perStore*len(orderers))
}
