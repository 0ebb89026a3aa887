package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnlimitedDaily is the sentinel daily limit meaning "no daily cap".
const UnlimitedDaily = -1

// QuotaRefusal names why a request credit could not be consumed.
type QuotaRefusal string

const (
	RefusalNoCredits  QuotaRefusal = "NO_CREDITS"
	RefusalDailyLimit QuotaRefusal = "DAILY_LIMIT_EXCEEDED"
)

// QuotaRecord is the per-user throttle state. The document id is the user id,
// so a user has exactly one record, created lazily on first use and never
// deleted.
type QuotaRecord struct {
	UserID         primitive.ObjectID `bson:"_id" json:"user_id"`
	DailyCount     int                `bson:"daily_count" json:"daily_count"`
	DailyResetDate string             `bson:"daily_reset_date" json:"daily_reset_date"`
	DailyLimit     int                `bson:"daily_limit" json:"daily_limit"`
	TotalAvailable int                `bson:"total_available" json:"total_available"`
	TotalUsed      int                `bson:"total_used" json:"total_used"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// QuotaStatus is the snapshot returned to clients. DailyRemaining is -1 when
// the daily limit is unlimited.
type QuotaStatus struct {
	DailyRemaining int `json:"daily_remaining"`
	DailyLimit     int `json:"daily_limit"`
	TotalRemaining int `json:"total_remaining"`
	TotalAvailable int `json:"total_available"`
}

// QuotaDate formats a time as the calendar-date string stored in
// DailyResetDate. The daily window rolls over when this string changes.
func QuotaDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// EffectiveDailyCount applies the lazy daily reset: a stale reset date means
// the stored count belongs to a previous day and reads as zero.
func (q *QuotaRecord) EffectiveDailyCount(today string) int {
	if q.DailyResetDate != today {
		return 0
	}
	return q.DailyCount
}

// Status builds the client-facing snapshot for the given day.
func (q *QuotaRecord) Status(today string) QuotaStatus {
	st := QuotaStatus{
		DailyLimit:     q.DailyLimit,
		TotalAvailable: q.TotalAvailable,
		TotalRemaining: q.TotalAvailable - q.TotalUsed,
	}
	if st.TotalRemaining < 0 {
		st.TotalRemaining = 0
	}
	if q.DailyLimit == UnlimitedDaily {
		st.DailyRemaining = UnlimitedDaily
		return st
	}
	st.DailyRemaining = q.DailyLimit - q.EffectiveDailyCount(today)
	if st.DailyRemaining < 0 {
		st.DailyRemaining = 0
	}
	return st
}

// Allow reports whether one more request may be sent today. The lifetime
// balance is checked before the daily window, matching the refusal priority
// clients expect.
func (q *QuotaRecord) Allow(today string) (bool, QuotaRefusal) {
	if q.TotalUsed >= q.TotalAvailable {
		return false, RefusalNoCredits
	}
	if q.DailyLimit != UnlimitedDaily && q.EffectiveDailyCount(today) >= q.DailyLimit {
		return false, RefusalDailyLimit
	}
	return true, ""
}
