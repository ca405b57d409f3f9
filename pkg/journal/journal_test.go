package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bgp-cmdb/pkg/model"
)

func entry(i int, at time.Time) model.JournalEntry {
	return model.JournalEntry{
		ID:        uuid.NewString(),
		Action:    model.ActionDelete,
		Kind:      model.KindDevice,
		TargetID:  uint(i),
		Detail:    fmt.Sprintf("device=%d", i),
		Timestamp: at.Add(time.Duration(i) * time.Second),
	}
}

func testJournal(t *testing.T, j Journal) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		require.NoError(t, j.Append(ctx, entry(i, base)))
	}

	got, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, uint(5), got[0].TargetID)
	require.Equal(t, uint(3), got[2].TargetID)
	require.Equal(t, model.KindDevice, got[0].Kind)
	require.Equal(t, "device=5", got[0].Detail)
	require.True(t, got[0].Timestamp.Equal(base.Add(5*time.Second)))

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestMemory(t *testing.T) {
	testJournal(t, NewMemory(0))
}

func TestMemoryIsBounded(t *testing.T) {
	m := NewMemory(2)
	base := time.Now()
	for i := 1; i <= 4; i++ {
		require.NoError(t, m.Append(context.Background(), entry(i, base)))
	}
	got, err := m.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint(4), got[0].TargetID)
	require.Equal(t, uint(3), got[1].TargetID)
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal.db")
	j, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	testJournal(t, j)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), entry(1, time.Now())))
	require.NoError(t, j.Close())

	j, err = OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
