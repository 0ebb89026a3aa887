package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuotaStatusSnapshot(t *testing.T) {
	today := QuotaDate(time.Now())

	tests := []struct {
		name string
		rec  QuotaRecord
		want QuotaStatus
	}{
		{
			name: "fresh record",
			rec:  QuotaRecord{DailyCount: 0, DailyResetDate: today, DailyLimit: 5, TotalAvailable: 20, TotalUsed: 0},
			want: QuotaStatus{DailyRemaining: 5, DailyLimit: 5, TotalRemaining: 20, TotalAvailable: 20},
		},
		{
			name: "partially used",
			rec:  QuotaRecord{DailyCount: 2, DailyResetDate: today, DailyLimit: 5, TotalAvailable: 20, TotalUsed: 7},
			want: QuotaStatus{DailyRemaining: 3, DailyLimit: 5, TotalRemaining: 13, TotalAvailable: 20},
		},
		{
			name: "stale reset date reads as zero daily count",
			rec:  QuotaRecord{DailyCount: 5, DailyResetDate: "2020-01-01", DailyLimit: 5, TotalAvailable: 20, TotalUsed: 7},
			want: QuotaStatus{DailyRemaining: 5, DailyLimit: 5, TotalRemaining: 13, TotalAvailable: 20},
		},
		{
			name: "unlimited daily uses sentinel remaining",
			rec:  QuotaRecord{DailyCount: 42, DailyResetDate: today, DailyLimit: UnlimitedDaily, TotalAvailable: 100, TotalUsed: 42},
			want: QuotaStatus{DailyRemaining: UnlimitedDaily, DailyLimit: UnlimitedDaily, TotalRemaining: 58, TotalAvailable: 100},
		},
		{
			name: "remaining never negative",
			rec:  QuotaRecord{DailyCount: 9, DailyResetDate: today, DailyLimit: 5, TotalAvailable: 20, TotalUsed: 20},
			want: QuotaStatus{DailyRemaining: 0, DailyLimit: 5, TotalRemaining: 0, TotalAvailable: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Status(today))
		})
	}
}

func TestQuotaAllow(t *testing.T) {
	today := QuotaDate(time.Now())

	t.Run("allowed with room in both allowances", func(t *testing.T) {
		rec := QuotaRecord{DailyCount: 1, DailyResetDate: today, DailyLimit: 5, TotalAvailable: 20, TotalUsed: 10}
		allowed, refusal := rec.Allow(today)
		assert.True(t, allowed)
		assert.Empty(t, refusal)
	})

	t.Run("no credits wins over daily limit", func(t *testing.T) {
		rec := QuotaRecord{DailyCount: 5, DailyResetDate: today, DailyLimit: 5, TotalAvailable: 20, TotalUsed: 20}
		allowed, refusal := rec.Allow(today)
		assert.False(t, allowed)
		assert.Equal(t, RefusalNoCredits, refusal)
	})

	t.Run("daily limit reached", func(t *testing.T) {
		rec := QuotaRecord{DailyCount: 5, DailyResetDate: today, DailyLimit: 5, TotalAvailable: 20, TotalUsed: 10}
		allowed, refusal := rec.Allow(today)
		assert.False(t, allowed)
		assert.Equal(t, RefusalDailyLimit, refusal)
	})

	t.Run("stale day resets the daily window", func(t *testing.T) {
		rec := QuotaRecord{DailyCount: 5, DailyResetDate: "2020-01-01", DailyLimit: 5, TotalAvailable: 20, TotalUsed: 10}
		allowed, refusal := rec.Allow(today)
		assert.True(t, allowed)
		assert.Empty(t, refusal)
	})

	t.Run("unlimited daily never refuses on the window", func(t *testing.T) {
		rec := QuotaRecord{DailyCount: 1000, DailyResetDate: today, DailyLimit: UnlimitedDaily, TotalAvailable: 2000, TotalUsed: 1000}
		allowed, refusal := rec.Allow(today)
		assert.True(t, allowed)
		assert.Empty(t, refusal)
	})

	t.Run("zero daily limit blocks all sends", func(t *testing.T) {
		rec := QuotaRecord{DailyCount: 0, DailyResetDate: today, DailyLimit: 0, TotalAvailable: 20, TotalUsed: 0}
		allowed, refusal := rec.Allow(today)
		assert.False(t, allowed)
		assert.Equal(t, RefusalDailyLimit, refusal)
	})
}

func TestPairKeyFor(t *testing.T) {
	a := newObjectID(t, "650000000000000000000001")
	b := newObjectID(t, "650000000000000000000002")

	assert.Equal(t, PairKeyFor(a, b), PairKeyFor(b, a))
	assert.NotEqual(t, PairKeyFor(a, b), PairKeyFor(a, a))
}
