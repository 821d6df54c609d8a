package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload(ctx context.Context) (*indexer.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &indexer.Snapshot{Version: uint64(f.calls)}, nil
}

func encode(t *testing.T, e CatalogEvent) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return data
}

func TestHandleMessage(t *testing.T) {
	loadedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := func() *indexer.Snapshot { return &indexer.Snapshot{LoadedAt: loadedAt, Version: 3} }
	r := &fakeReloader{}
	h := HandleMessage(r, current)
	ctx := context.Background()

	require.NoError(t, h(ctx, nil, encode(t, CatalogEvent{Type: "product_updated", Timestamp: loadedAt.Add(time.Minute)})))
	assert.Equal(t, 1, r.calls)

	require.NoError(t, h(ctx, nil, encode(t, CatalogEvent{Type: "product_updated", Timestamp: loadedAt.Add(-time.Minute)})))
	assert.Equal(t, 1, r.calls, "stale event must not reload")

	require.NoError(t, h(ctx, []byte("k"), []byte("{garbage")))
	assert.Equal(t, 1, r.calls)

	r.err = errors.New("loader down")
	err := h(ctx, nil, encode(t, CatalogEvent{Type: "full_refresh"}))
	assert.ErrorContains(t, err, "full_refresh")
}
