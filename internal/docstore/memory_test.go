package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

func testPath() Path {
	return Path{CompanyID: "co-1", Kind: billing.KindSalesBill}
}

func testDoc(number string) billing.Document {
	return billing.Document{
		Kind:           billing.KindSalesBill,
		CompanyID:      "co-1",
		DocumentNumber: number,
		DocumentDate:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		Counterparty:   billing.Counterparty{Name: "Meridian Traders"},
	}
}

func TestPathString(t *testing.T) {
	require.Equal(t, "companies/co-1/sales_bills", testPath().String())
	require.Equal(t, "companies/co-1/quotations", Path{CompanyID: "co-1", Kind: billing.KindQuotation}.String())
}

func TestMemoryStoreCreateAssignsIdentity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, testPath(), testDoc("1"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := store.List(ctx, testPath(), Query{})
	require.NoError(t, err)
	require.Len(t, snap.Documents, 1)
	require.Equal(t, id, snap.Documents[0].ID)
	require.False(t, snap.Documents[0].CreatedAt.IsZero())
	require.False(t, snap.Documents[0].UpdatedAt.IsZero())
}

func TestMemoryStoreUpdateMergesPatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, testPath(), testDoc("1"))
	require.NoError(t, err)

	err = store.Update(ctx, testPath(), id, map[string]any{"payment_status": "PAID", "terms": "Net 15"})
	require.NoError(t, err)

	snap, err := store.List(ctx, testPath(), Query{})
	require.NoError(t, err)
	require.Equal(t, billing.PaymentPaid, snap.Documents[0].PaymentStatus)
	require.Equal(t, "Net 15", snap.Documents[0].Terms)
	require.Equal(t, "1", snap.Documents[0].DocumentNumber)
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	store := NewMemoryStore()
	err := store.Update(context.Background(), testPath(), "nope", map[string]any{"terms": "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, testPath(), testDoc("1"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, testPath(), id))
	require.ErrorIs(t, store.Delete(ctx, testPath(), id), ErrNotFound)

	snap, err := store.List(ctx, testPath(), Query{})
	require.NoError(t, err)
	require.Empty(t, snap.Documents)
}

func TestMemoryStoreSubscribeDeliversInitialSnapshot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, testPath(), Query{})
	require.NoError(t, err)
	defer sub.Close()

	select {
	case snap := <-sub.Snapshots():
		require.NotNil(t, snap.Documents)
		require.Empty(t, snap.Documents)
	default:
		t.Fatal("initial snapshot must be buffered before Subscribe returns")
	}
}

func TestMemoryStoreSubscribeReplaysOnWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, testPath(), Query{})
	require.NoError(t, err)
	defer sub.Close()

	<-sub.Snapshots()

	_, err = store.Create(ctx, testPath(), testDoc("1"))
	require.NoError(t, err)

	select {
	case snap := <-sub.Snapshots():
		require.Len(t, snap.Documents, 1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write snapshot")
	}
}

func TestMemoryStoreSubscribeScopedToPath(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, testPath(), Query{})
	require.NoError(t, err)
	defer sub.Close()
	<-sub.Snapshots()

	other := Path{CompanyID: "co-2", Kind: billing.KindSalesBill}
	_, err = store.Create(ctx, other, testDoc("1"))
	require.NoError(t, err)

	select {
	case <-sub.Snapshots():
		t.Fatal("writes to another collection must not reach this subscription")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemorySubscriptionCloseIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	sub, err := store.Subscribe(context.Background(), testPath(), Query{})
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	// A write after close must not panic on the closed channel.
	_, err = store.Create(context.Background(), testPath(), testDoc("1"))
	require.NoError(t, err)
}
