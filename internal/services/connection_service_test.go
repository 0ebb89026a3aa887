package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Aidana2201/Connection_Hub/internal/models"
	"github.com/Aidana2201/Connection_Hub/internal/repository"
	"github.com/Aidana2201/Connection_Hub/pkg/apperrors"
	"github.com/Aidana2201/Connection_Hub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	logger.InitLogger("error")
}

// --- in-memory fakes -------------------------------------------------------

type fakeConnStore struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*models.Connection
}

func newFakeConnStore() *fakeConnStore {
	return &fakeConnStore{docs: make(map[primitive.ObjectID]*models.Connection)}
}

func (f *fakeConnStore) Insert(_ context.Context, from, to primitive.ObjectID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := models.PairKeyFor(from, to)
	for _, doc := range f.docs {
		if doc.PairKey == key {
			return nil, repository.ErrDuplicatePair
		}
	}

	now := time.Now()
	conn := &models.Connection{
		ID:         primitive.NewObjectID(),
		PairKey:    key,
		FromUserID: from,
		ToUserID:   to,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.docs[conn.ID] = conn
	copied := *conn
	return &copied, nil
}

func (f *fakeConnStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeConnStore) FindByPair(_ context.Context, a, b primitive.ObjectID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := models.PairKeyFor(a, b)
	for _, doc := range f.docs {
		if doc.PairKey == key {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeConnStore) UpdateStatus(_ context.Context, id primitive.ObjectID, status string) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.Status != models.StatusPending {
		return nil, nil
	}
	doc.Status = status
	doc.UpdatedAt = time.Now()
	copied := *doc
	return &copied, nil
}

func (f *fakeConnStore) Recycle(_ context.Context, id, from, to primitive.ObjectID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.Status != models.StatusRejected {
		return nil, nil
	}
	doc.FromUserID = from
	doc.ToUserID = to
	doc.Status = models.StatusPending
	doc.UpdatedAt = time.Now()
	copied := *doc
	return &copied, nil
}

func (f *fakeConnStore) DeletePending(_ context.Context, id primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.Status != models.StatusPending {
		return false, nil
	}
	delete(f.docs, id)
	return true, nil
}

func (f *fakeConnStore) ListForUser(_ context.Context, userID primitive.ObjectID, status, direction string, limit, skip int64) ([]models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matches := []models.Connection{}
	for _, doc := range f.docs {
		switch direction {
		case "sent":
			if doc.FromUserID != userID {
				continue
			}
		case "received":
			if doc.ToUserID != userID {
				continue
			}
		default:
			if !doc.Involves(userID) {
				continue
			}
		}
		if status != "" && doc.Status != status {
			continue
		}
		matches = append(matches, *doc)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})
	if skip >= int64(len(matches)) {
		return []models.Connection{}, nil
	}
	matches = matches[skip:]
	if int64(len(matches)) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeConnStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]*models.QuotaRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[primitive.ObjectID]*models.QuotaRecord)}
}

func (f *fakeLedger) getOrCreateLocked(userID primitive.ObjectID) *models.QuotaRecord {
	rec, ok := f.records[userID]
	if !ok {
		rec = &models.QuotaRecord{
			UserID:         userID,
			DailyResetDate: models.QuotaDate(time.Now()),
			DailyLimit:     5,
			TotalAvailable: 20,
		}
		f.records[userID] = rec
	}
	return rec
}

func (f *fakeLedger) set(userID primitive.ObjectID, rec models.QuotaRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.UserID = userID
	f.records[userID] = &rec
}

func (f *fakeLedger) GetOrCreate(_ context.Context, userID primitive.ObjectID) (*models.QuotaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *f.getOrCreateLocked(userID)
	return &copied, nil
}

func (f *fakeLedger) TryConsume(_ context.Context, userID primitive.ObjectID) (*models.QuotaRecord, models.QuotaRefusal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := f.getOrCreateLocked(userID)
	today := models.QuotaDate(time.Now())
	allowed, refusal := rec.Allow(today)
	if !allowed {
		copied := *rec
		return &copied, refusal, nil
	}

	if rec.DailyResetDate != today {
		rec.DailyCount = 0
		rec.DailyResetDate = today
	}
	rec.DailyCount++
	rec.TotalUsed++
	copied := *rec
	return &copied, "", nil
}

func (f *fakeLedger) AddCredits(_ context.Context, userID primitive.ObjectID, amount int, removeDailyLimit bool) (*models.QuotaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.getOrCreateLocked(userID)
	rec.TotalAvailable += amount
	if removeDailyLimit {
		rec.DailyLimit = models.UnlimitedDaily
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeLedger) SetDailyLimit(_ context.Context, userID primitive.ObjectID, limit int) (*models.QuotaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.getOrCreateLocked(userID)
	rec.DailyLimit = limit
	copied := *rec
	return &copied, nil
}

type fakeNotifStore struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (f *fakeNotifStore) Create(_ context.Context, notif *models.Notification) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	notif.ID = primitive.NewObjectID()
	notif.CreatedAt = time.Now()
	f.notes = append(f.notes, *notif)
	copied := *notif
	return &copied, nil
}

func (f *fakeNotifStore) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification{}, f.notes...)
}

type pushed struct {
	userID string
	event  models.Event
}

type fakePusher struct {
	mu     sync.Mutex
	events []pushed
}

func (f *fakePusher) Push(userID string, event models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, pushed{userID: userID, event: event})
}

func (f *fakePusher) all() []pushed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushed{}, f.events...)
}

type fakeUsers struct {
	users map[primitive.ObjectID]*models.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, nil
}

// --- fixture ---------------------------------------------------------------

type fixture struct {
	conns  *fakeConnStore
	ledger *fakeLedger
	notifs *fakeNotifStore
	pusher *fakePusher
	svc    *ConnectionService

	u1, u2, u3 primitive.ObjectID
}

func newFixture() *fixture {
	f := &fixture{
		conns:  newFakeConnStore(),
		ledger: newFakeLedger(),
		notifs: &fakeNotifStore{},
		pusher: &fakePusher{},
		u1:     primitive.NewObjectID(),
		u2:     primitive.NewObjectID(),
		u3:     primitive.NewObjectID(),
	}
	users := &fakeUsers{users: map[primitive.ObjectID]*models.User{
		f.u1: {ID: f.u1, Username: "aliya", Email: "aliya@example.com"},
		f.u2: {ID: f.u2, Username: "bekzat", Email: "bekzat@example.com"},
	}}
	f.svc = NewConnectionService(f.conns, f.ledger, f.notifs, f.pusher, users, nil)
	return f
}

// --- tests -----------------------------------------------------------------

func TestSendRequestSelf(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u1)

	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	assert.Equal(t, apperrors.ReasonSelfRequest, appErr.Reason)
	assert.Equal(t, 0, f.conns.count())
}

func TestSendRequestSuccess(t *testing.T) {
	f := newFixture()

	conn, quota, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.Equal(t, models.StatusPending, conn.Status)
	assert.Equal(t, f.u1, conn.FromUserID)
	assert.Equal(t, f.u2, conn.ToUserID)

	require.NotNil(t, quota)
	assert.Equal(t, 19, quota.TotalRemaining)
	assert.Equal(t, 4, quota.DailyRemaining)

	notes := f.notifs.all()
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationRequestReceived, notes[0].Type)
	assert.Equal(t, f.u2, notes[0].UserID)
	assert.Equal(t, f.u1, notes[0].ActorUserID)
	assert.Equal(t, conn.ID, notes[0].RefID)
	assert.Equal(t, "aliya", notes[0].ActorName)

	pushes := f.pusher.all()
	require.Len(t, pushes, 1)
	assert.Equal(t, f.u2.Hex(), pushes[0].userID)
	assert.Equal(t, models.EventNewNotification, pushes[0].event.Type)
}

func TestSendRequestDuplicatePending(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)

	// Same direction and the reverse direction both conflict.
	for _, pair := range [][2]primitive.ObjectID{{f.u1, f.u2}, {f.u2, f.u1}} {
		_, _, err = f.svc.SendRequest(context.Background(), pair[0], pair[1])
		appErr := apperrors.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeConflict, appErr.Code)
		assert.Equal(t, apperrors.ReasonDuplicateRequest, appErr.Reason)
	}
	assert.Equal(t, 1, f.conns.count())
}

func TestSendRequestAlreadyConnected(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(context.Background(), conn.ID, f.u2)
	require.NoError(t, err)

	_, _, err = f.svc.SendRequest(context.Background(), f.u2, f.u1)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, apperrors.ReasonAlreadyConnected, appErr.Reason)
}

func TestSendRequestRecyclesRejected(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	_, err = f.svc.RejectRequest(context.Background(), conn.ID, f.u2)
	require.NoError(t, err)

	// The rejected party re-proposes: same document, reversed direction.
	recycled, _, err := f.svc.SendRequest(context.Background(), f.u2, f.u1)
	require.NoError(t, err)

	assert.Equal(t, conn.ID, recycled.ID)
	assert.Equal(t, models.StatusPending, recycled.Status)
	assert.Equal(t, f.u2, recycled.FromUserID)
	assert.Equal(t, f.u1, recycled.ToUserID)
	assert.Equal(t, 1, f.conns.count())

	// The new recipient got a fresh request notification.
	notes := f.notifs.all()
	require.Len(t, notes, 3)
	last := notes[2]
	assert.Equal(t, models.NotificationRequestReceived, last.Type)
	assert.Equal(t, f.u1, last.UserID)
}

func TestSendRequestQuotaScenario(t *testing.T) {
	f := newFixture()
	today := models.QuotaDate(time.Now())
	f.ledger.set(f.u1, models.QuotaRecord{
		DailyCount:     0,
		DailyResetDate: today,
		DailyLimit:     2,
		TotalAvailable: 20,
		TotalUsed:      19,
	})

	_, quota, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	require.NotNil(t, quota)
	assert.Equal(t, 0, quota.TotalRemaining)
	assert.Equal(t, 1, quota.DailyRemaining)

	_, quota, err = f.svc.SendRequest(context.Background(), f.u1, f.u3)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeQuotaExceeded, appErr.Code)
	assert.Equal(t, apperrors.ReasonNoCredits, appErr.Reason)
	require.NotNil(t, quota)
	assert.Equal(t, 0, quota.TotalRemaining)
	require.NotNil(t, appErr.Quota)

	// The refused request left no connection behind.
	assert.Equal(t, 1, f.conns.count())
}

func TestSendRequestDailyLimitExceeded(t *testing.T) {
	f := newFixture()
	today := models.QuotaDate(time.Now())
	f.ledger.set(f.u1, models.QuotaRecord{
		DailyCount:     2,
		DailyResetDate: today,
		DailyLimit:     2,
		TotalAvailable: 20,
		TotalUsed:      2,
	})

	_, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeQuotaExceeded, appErr.Code)
	assert.Equal(t, apperrors.ReasonDailyLimitExceeded, appErr.Reason)
}

func TestAcceptRequestAuthorization(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)

	// The sender cannot accept their own request, nor can a third party.
	for _, actor := range []primitive.ObjectID{f.u1, f.u3} {
		_, err = f.svc.AcceptRequest(context.Background(), conn.ID, actor)
		appErr := apperrors.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeForbidden, appErr.Code)
	}
}

func TestAcceptRequestSuccess(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)

	accepted, err := f.svc.AcceptRequest(context.Background(), conn.ID, f.u2)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)

	notes := f.notifs.all()
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotificationRequestAccepted, notes[1].Type)
	assert.Equal(t, f.u1, notes[1].UserID)
	assert.Equal(t, conn.ID, notes[1].RefID)
	assert.Equal(t, f.u2, notes[1].ActorUserID)

	pushes := f.pusher.all()
	require.Len(t, pushes, 2)
	assert.Equal(t, f.u1.Hex(), pushes[1].userID)
}

func TestRejectRequestNotifiesSender(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)

	rejected, err := f.svc.RejectRequest(context.Background(), conn.ID, f.u2)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	notes := f.notifs.all()
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotificationRequestRejected, notes[1].Type)
	assert.Equal(t, f.u1, notes[1].UserID)
}

func TestResolveNotFoundAndInvalidState(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AcceptRequest(context.Background(), primitive.NewObjectID(), f.u2)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(context.Background(), conn.ID, f.u2)
	require.NoError(t, err)

	// Accepted is terminal: no further resolution is possible.
	_, err = f.svc.RejectRequest(context.Background(), conn.ID, f.u2)
	appErr = apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, apperrors.ReasonInvalidState, appErr.Reason)
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AcceptRequest(context.Background(), conn.ID, f.u2)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		appErr := apperrors.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.ReasonInvalidState, appErr.Reason)
		conflicts++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestCancelRequest(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)

	// Only the sender can cancel.
	err = f.svc.CancelRequest(context.Background(), conn.ID, f.u2)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeForbidden, appErr.Code)

	require.NoError(t, f.svc.CancelRequest(context.Background(), conn.ID, f.u1))
	assert.Equal(t, 0, f.conns.count())

	// Cancellation produces no notification: only the original request did.
	assert.Len(t, f.notifs.all(), 1)

	err = f.svc.CancelRequest(context.Background(), conn.ID, f.u1)
	appErr = apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestCancelRequestInvalidState(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(context.Background(), conn.ID, f.u2)
	require.NoError(t, err)

	err = f.svc.CancelRequest(context.Background(), conn.ID, f.u1)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, apperrors.ReasonInvalidState, appErr.Reason)
}

func TestGetConnectionsFilters(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	_, _, err = f.svc.SendRequest(context.Background(), f.u3, f.u1)
	require.NoError(t, err)

	all, err := f.svc.GetConnections(context.Background(), f.u1, "", "", 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sent, err := f.svc.GetConnections(context.Background(), f.u1, "", "sent", 20, 0)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, f.u1, sent[0].FromUserID)

	received, err := f.svc.GetConnections(context.Background(), f.u1, models.StatusPending, "received", 20, 0)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, f.u1, received[0].ToUserID)

	_, err = f.svc.GetConnections(context.Background(), f.u1, "bogus", "", 20, 0)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestGetConnectionBetween(t *testing.T) {
	f := newFixture()

	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)

	got, isSender, err := f.svc.GetConnectionBetween(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, conn.ID, got.ID)
	assert.True(t, isSender)

	_, isSender, err = f.svc.GetConnectionBetween(context.Background(), f.u2, f.u1)
	require.NoError(t, err)
	assert.False(t, isSender)

	got, _, err = f.svc.GetConnectionBetween(context.Background(), f.u1, f.u3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGrantCreditsAndDailyLimit(t *testing.T) {
	f := newFixture()

	quota, err := f.svc.GrantCredits(context.Background(), f.u1, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 30, quota.TotalAvailable)
	assert.Equal(t, models.UnlimitedDaily, quota.DailyRemaining)

	_, err = f.svc.GrantCredits(context.Background(), f.u1, 0, false)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)

	quota, err = f.svc.SetDailyLimit(context.Background(), f.u1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, quota.DailyLimit)

	_, err = f.svc.SetDailyLimit(context.Background(), f.u1, -2)
	appErr = apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestPairwiseUniquenessAcrossLifecycle(t *testing.T) {
	f := newFixture()

	// send → reject → resend → accept never yields a second document.
	conn, _, err := f.svc.SendRequest(context.Background(), f.u1, f.u2)
	require.NoError(t, err)
	_, err = f.svc.RejectRequest(context.Background(), conn.ID, f.u2)
	require.NoError(t, err)
	recycled, _, err := f.svc.SendRequest(context.Background(), f.u2, f.u1)
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(context.Background(), recycled.ID, f.u1)
	require.NoError(t, err)

	assert.Equal(t, 1, f.conns.count())
}
