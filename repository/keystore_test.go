package repository

import (
	"context"
	"testing"
	"time"

	"github.com/keywatch/go-keywatch-client/types"
	"github.com/stretchr/testify/assert"
)

func testKey(material string) types.TemporaryExposureKey {
	return types.TemporaryExposureKey{
		KeyData:            []byte(material),
		RollingStartNumber: 2650032,
		TransmissionRisk:   types.TransmissionRisk(4),
	}
}

func TestInsertIfAbsentPreservesFirstSight(t *testing.T) {
	ks := NewKeyStore(NewMemoryRepository(DiagnosisKeys))
	ctx := context.Background()

	firstSeen := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	ks.now = func() time.Time { return firstSeen }

	added, err := ks.InsertIfAbsent(ctx, testKey("aaaaaaaaaaaaaaaa"))
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, added)

	// reinsertion of a known key is absorbed and keeps the original record
	ks.now = func() time.Time { return firstSeen.Add(48 * time.Hour) }
	added, err = ks.InsertIfAbsent(ctx, testKey("aaaaaaaaaaaaaaaa"))
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, added)

	records, err := ks.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if assert.Len(t, records, 1) {
		assert.True(t, records[0].ReceivedAt.Equal(firstSeen))
	}
}

func TestRemoveAbsentKey(t *testing.T) {
	ks := NewKeyStore(NewMemoryRepository(DiagnosisKeys))

	removed, err := ks.Remove(context.Background(), testKey("aaaaaaaaaaaaaaaa"))
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, removed)
}

func TestClear(t *testing.T) {
	ks := NewKeyStore(NewMemoryRepository(DiagnosisKeys))
	ctx := context.Background()

	for _, m := range []string{"aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb"} {
		if _, err := ks.InsertIfAbsent(ctx, testKey(m)); err != nil {
			t.Fatal(err)
		}
	}
	if err := ks.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	keys, err := ks.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, keys)
}
