package queuestore

import (
	"context"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"uk.co.dudmesh.herald/internal/model"
)

func openTestStore(t *testing.T) *queuestore {
	t.Helper()

	store, err := Open(path.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("opening queue store: %+v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func appendRecord(t *testing.T, store *queuestore, postID string) *model.PostRecord {
	t.Helper()

	record := &model.PostRecord{
		PostID:        postID,
		ChannelTarget: "mychan",
		ApproverID:    "111",
		Text:          "Hello https://x.co/a",
	}
	if err := store.Append(context.Background(), record); err != nil {
		t.Fatalf("appending record: %+v", err)
	}

	return record
}

func TestAppendAndListCandidates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)

	first := appendRecord(t, store, "p1")
	second := appendRecord(t, store, "p2")
	third := appendRecord(t, store, "p3")
	assert.NotZero(first.RowToken)

	records, err := store.ListCandidates(ctx)
	assert.Nil(err)
	assert.Len(records, 3)

	// insertion order is the store's natural order
	assert.Equal("p1", records[0].PostID)
	assert.Equal("p2", records[1].PostID)
	assert.Equal("p3", records[2].PostID)
	assert.Equal(second.RowToken, records[1].RowToken)
	assert.Equal(third.RowToken, records[2].RowToken)

	assert.Equal(model.PostStatusPending, records[0].Status)
	assert.Equal("mychan", records[0].ChannelTarget)
	assert.Equal("111", records[0].ApproverID)
	assert.False(records[0].CreatedAt.IsZero())
}

func TestReadMissingRecord(t *testing.T) {
	assert := assert.New(t)
	store := openTestStore(t)

	_, err := store.Read(context.Background(), 99)
	assert.ErrorIs(err, model.ErrorRecordNotFound)
}

func TestClaimIsExactlyOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)
	record := appendRecord(t, store, "p1")

	claimed, err := store.Claim(ctx, record.RowToken, "claim-1")
	assert.Nil(err)
	assert.True(claimed)

	// the second observer of the same pending row loses
	claimed, err = store.Claim(ctx, record.RowToken, "claim-2")
	assert.Nil(err)
	assert.False(claimed)

	got, err := store.Read(ctx, record.RowToken)
	assert.Nil(err)
	assert.Equal(model.PostStatusClaimed, got.Status)
	assert.Equal("claim-1", got.ClaimToken)
	assert.NotNil(got.UpdatedAt)
}

func TestResolveLosesAfterFirstResolution(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)
	record := appendRecord(t, store, "p1")

	claimed, err := store.Claim(ctx, record.RowToken, "claim-1")
	assert.Nil(err)
	assert.True(claimed)
	assert.Nil(store.UpdateStatus(ctx, record.RowToken, model.PostStatusAwaitingApproval))

	resolved, err := store.Resolve(ctx, record.RowToken, model.PostStatusApproved)
	assert.Nil(err)
	assert.True(resolved)

	// replayed decisions observe a lost CAS, not a second transition
	resolved, err = store.Resolve(ctx, record.RowToken, model.PostStatusRejected)
	assert.Nil(err)
	assert.False(resolved)

	got, err := store.Read(ctx, record.RowToken)
	assert.Nil(err)
	assert.Equal(model.PostStatusApproved, got.Status)
}

func TestReleaseReturnsRecordToPending(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)
	record := appendRecord(t, store, "p1")

	claimed, err := store.Claim(ctx, record.RowToken, "claim-1")
	assert.Nil(err)
	assert.True(claimed)

	assert.Nil(store.Release(ctx, record.RowToken))

	got, err := store.Read(ctx, record.RowToken)
	assert.Nil(err)
	assert.Equal(model.PostStatusPending, got.Status)
	assert.Equal("", got.ClaimToken)

	// a released record is claimable again
	claimed, err = store.Claim(ctx, record.RowToken, "claim-2")
	assert.Nil(err)
	assert.True(claimed)
}

func TestReleaseIgnoresUnclaimedRecords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)
	record := appendRecord(t, store, "p1")

	assert.Nil(store.UpdateStatus(ctx, record.RowToken, model.PostStatusPublished))
	assert.Nil(store.Release(ctx, record.RowToken))

	got, err := store.Read(ctx, record.RowToken)
	assert.Nil(err)
	assert.Equal(model.PostStatusPublished, got.Status)
}

func TestAppendPreservesOptionalFields(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := openTestStore(t)

	record := &model.PostRecord{
		PostID:        "p1",
		ChannelTarget: "-1001234567890",
		ApproverID:    "111",
		Text:          "Watch this",
		MediaType:     model.MediaTypeVideo,
		MediaRef:      "BAACAgIAAxkBAAIB",
		CTALabel:      "Read more",
		CTAURL:        "https://example.com/a",
	}
	assert.Nil(store.Append(ctx, record))

	got, err := store.Read(ctx, record.RowToken)
	assert.Nil(err)
	assert.Equal(model.MediaTypeVideo, got.MediaType)
	assert.Equal("BAACAgIAAxkBAAIB", got.MediaRef)
	assert.Equal("Read more", got.CTALabel)
	assert.Equal("https://example.com/a", got.CTAURL)
	assert.Nil(got.UpdatedAt)
}
