package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Aidana2201/Connection_Hub/internal/models"
	"github.com/Aidana2201/Connection_Hub/internal/repository"
	"github.com/Aidana2201/Connection_Hub/pkg/apperrors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConnectionStore is the durable storage for connection documents.
type ConnectionStore interface {
	Insert(ctx context.Context, from, to primitive.ObjectID) (*models.Connection, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Connection, error)
	FindByPair(ctx context.Context, a, b primitive.ObjectID) (*models.Connection, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Connection, error)
	Recycle(ctx context.Context, id, from, to primitive.ObjectID) (*models.Connection, error)
	DeletePending(ctx context.Context, id primitive.ObjectID) (bool, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID, status, direction string, limit, skip int64) ([]models.Connection, error)
}

// QuotaLedger is the durable per-user request credit ledger.
type QuotaLedger interface {
	GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.QuotaRecord, error)
	TryConsume(ctx context.Context, userID primitive.ObjectID) (*models.QuotaRecord, models.QuotaRefusal, error)
	AddCredits(ctx context.Context, userID primitive.ObjectID, amount int, removeDailyLimit bool) (*models.QuotaRecord, error)
	SetDailyLimit(ctx context.Context, userID primitive.ObjectID, limit int) (*models.QuotaRecord, error)
}

// NotificationStore is the durable, append-only notification log.
type NotificationStore interface {
	Create(ctx context.Context, notif *models.Notification) (*models.Notification, error)
}

// Pusher delivers best-effort realtime events to a user's live channels.
type Pusher interface {
	Push(userID string, event models.Event)
}

// UserDirectory resolves user profiles for notification enrichment and mail.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Mailer sends best-effort mail; failures never fail an operation.
type Mailer interface {
	Enabled() bool
	Send(to, subject, body string) error
}

// ConnectionService owns the connection state machine: it validates actions,
// spends quota credits, persists transitions, writes the durable notification
// and triggers the realtime push.
type ConnectionService struct {
	connections ConnectionStore
	quota       QuotaLedger
	notifs      NotificationStore
	pusher      Pusher
	users       UserDirectory
	mailer      Mailer
}

func NewConnectionService(connections ConnectionStore, quota QuotaLedger, notifs NotificationStore, pusher Pusher, users UserDirectory, mailer Mailer) *ConnectionService {
	return &ConnectionService{
		connections: connections,
		quota:       quota,
		notifs:      notifs,
		pusher:      pusher,
		users:       users,
		mailer:      mailer,
	}
}

// SendRequest creates a pending connection from one user to another, spending
// one quota credit. A previously rejected connection between the pair is
// recycled in place with the new direction.
func (s *ConnectionService) SendRequest(ctx context.Context, fromID, toID primitive.ObjectID) (*models.Connection, *models.QuotaStatus, error) {
	if fromID == toID {
		return nil, nil, apperrors.Validation(apperrors.ReasonSelfRequest, "cannot send a connection request to yourself")
	}

	existing, err := s.connections.FindByPair(ctx, fromID, toID)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	if existing != nil {
		switch existing.Status {
		case models.StatusPending:
			return nil, nil, apperrors.Conflict(apperrors.ReasonDuplicateRequest, "a pending request already exists between these users")
		case models.StatusAccepted:
			return nil, nil, apperrors.Conflict(apperrors.ReasonAlreadyConnected, "these users are already connected")
		}
	}

	record, refusal, err := s.quota.TryConsume(ctx, fromID)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	if refusal != "" {
		snapshot := record.Status(models.QuotaDate(time.Now()))
		return nil, &snapshot, apperrors.QuotaExceeded(string(refusal), snapshot)
	}

	var conn *models.Connection
	if existing != nil {
		// Rejected record: flip it back to pending with the new direction.
		conn, err = s.connections.Recycle(ctx, existing.ID, fromID, toID)
		if err != nil {
			return nil, nil, apperrors.Internal(err)
		}
		if conn == nil {
			// Someone else changed the record between our read and the
			// recycle; classify against the fresh state.
			return nil, nil, s.classifyPairConflict(ctx, fromID, toID)
		}
	} else {
		conn, err = s.connections.Insert(ctx, fromID, toID)
		if err == repository.ErrDuplicatePair {
			return nil, nil, s.classifyPairConflict(ctx, fromID, toID)
		}
		if err != nil {
			return nil, nil, apperrors.Internal(err)
		}
	}

	s.notify(ctx, toID, models.NotificationRequestReceived, conn.ID, fromID)

	snapshot := record.Status(models.QuotaDate(time.Now()))
	return conn, &snapshot, nil
}

// classifyPairConflict re-reads the pair after losing a write race and maps
// the observed state to the conflict the caller would have seen anyway.
func (s *ConnectionService) classifyPairConflict(ctx context.Context, a, b primitive.ObjectID) error {
	current, err := s.connections.FindByPair(ctx, a, b)
	if err != nil {
		return apperrors.Internal(err)
	}
	if current != nil && current.Status == models.StatusAccepted {
		return apperrors.Conflict(apperrors.ReasonAlreadyConnected, "these users are already connected")
	}
	return apperrors.Conflict(apperrors.ReasonDuplicateRequest, "a pending request already exists between these users")
}

// AcceptRequest resolves a pending connection as accepted. Only the recipient
// may accept, and only while the request is pending.
func (s *ConnectionService) AcceptRequest(ctx context.Context, connID, actingUserID primitive.ObjectID) (*models.Connection, error) {
	return s.resolveRequest(ctx, connID, actingUserID, models.StatusAccepted)
}

// RejectRequest resolves a pending connection as rejected.
func (s *ConnectionService) RejectRequest(ctx context.Context, connID, actingUserID primitive.ObjectID) (*models.Connection, error) {
	return s.resolveRequest(ctx, connID, actingUserID, models.StatusRejected)
}

func (s *ConnectionService) resolveRequest(ctx context.Context, connID, actingUserID primitive.ObjectID, status string) (*models.Connection, error) {
	conn, err := s.connections.FindByID(ctx, connID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if conn == nil {
		return nil, apperrors.NotFound("connection not found")
	}
	if conn.ToUserID != actingUserID {
		return nil, apperrors.Forbidden("only the recipient can respond to a request")
	}
	if conn.Status != models.StatusPending {
		return nil, apperrors.Conflict(apperrors.ReasonInvalidState, "request has already been resolved")
	}

	updated, err := s.connections.UpdateStatus(ctx, connID, status)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if updated == nil {
		// A concurrent resolution won; exactly one caller succeeds.
		return nil, apperrors.Conflict(apperrors.ReasonInvalidState, "request has already been resolved")
	}

	notifType := models.NotificationRequestRejected
	if status == models.StatusAccepted {
		notifType = models.NotificationRequestAccepted
	}
	s.notify(ctx, updated.FromUserID, notifType, updated.ID, actingUserID)

	if status == models.StatusAccepted {
		s.sendAcceptedMail(ctx, updated)
	}

	return updated, nil
}

// CancelRequest deletes a pending connection entirely. Only the sender may
// cancel, and cancellation produces no notification.
func (s *ConnectionService) CancelRequest(ctx context.Context, connID, actingUserID primitive.ObjectID) error {
	conn, err := s.connections.FindByID(ctx, connID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if conn == nil {
		return apperrors.NotFound("connection not found")
	}
	if conn.FromUserID != actingUserID {
		return apperrors.Forbidden("only the sender can cancel a request")
	}
	if conn.Status != models.StatusPending {
		return apperrors.Conflict(apperrors.ReasonInvalidState, "only pending requests can be cancelled")
	}

	deleted, err := s.connections.DeletePending(ctx, connID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !deleted {
		return apperrors.Conflict(apperrors.ReasonInvalidState, "only pending requests can be cancelled")
	}
	return nil
}

// GetConnections lists the user's connections with optional status and
// direction filters, paginated and most recently updated first.
func (s *ConnectionService) GetConnections(ctx context.Context, userID primitive.ObjectID, status, direction string, limit, skip int64) ([]models.Connection, error) {
	switch status {
	case "", models.StatusPending, models.StatusAccepted, models.StatusRejected:
	default:
		return nil, apperrors.Validation("", fmt.Sprintf("unknown status filter %q", status))
	}
	switch direction {
	case "", "sent", "received":
	default:
		return nil, apperrors.Validation("", fmt.Sprintf("unknown type filter %q", direction))
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	connections, err := s.connections.ListForUser(ctx, userID, status, direction, limit, skip)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return connections, nil
}

// GetConnectionBetween returns the single connection between the caller and
// another user (nil when none exists) plus whether the caller is the sender.
func (s *ConnectionService) GetConnectionBetween(ctx context.Context, userID, otherID primitive.ObjectID) (*models.Connection, bool, error) {
	conn, err := s.connections.FindByPair(ctx, userID, otherID)
	if err != nil {
		return nil, false, apperrors.Internal(err)
	}
	if conn == nil {
		return nil, false, nil
	}
	return conn, conn.FromUserID == userID, nil
}

// GetQuota returns the caller's current quota snapshot, materializing the
// record on first access.
func (s *ConnectionService) GetQuota(ctx context.Context, userID primitive.ObjectID) (*models.QuotaStatus, error) {
	record, err := s.quota.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	snapshot := record.Status(models.QuotaDate(time.Now()))
	return &snapshot, nil
}

// GrantCredits is the administrative credit top-up.
func (s *ConnectionService) GrantCredits(ctx context.Context, userID primitive.ObjectID, amount int, removeDailyLimit bool) (*models.QuotaStatus, error) {
	if amount <= 0 {
		return nil, apperrors.Validation("", "credit amount must be positive")
	}
	record, err := s.quota.AddCredits(ctx, userID, amount, removeDailyLimit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	snapshot := record.Status(models.QuotaDate(time.Now()))
	return &snapshot, nil
}

// SetDailyLimit is the administrative daily-cap override.
func (s *ConnectionService) SetDailyLimit(ctx context.Context, userID primitive.ObjectID, limit int) (*models.QuotaStatus, error) {
	if limit < models.UnlimitedDaily {
		return nil, apperrors.Validation("", "daily limit must be -1 (unlimited) or non-negative")
	}
	record, err := s.quota.SetDailyLimit(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	snapshot := record.Status(models.QuotaDate(time.Now()))
	return &snapshot, nil
}

// notify writes the durable notification record and then pushes a realtime
// event. The record is the source of truth; push failures are invisible here
// because delivery is best-effort by design.
func (s *ConnectionService) notify(ctx context.Context, userID primitive.ObjectID, notifType string, refID, actorID primitive.ObjectID) {
	notif := &models.Notification{
		UserID:      userID,
		Type:        notifType,
		RefID:       refID,
		ActorUserID: actorID,
		ActorName:   s.displayName(ctx, actorID),
	}

	created, err := s.notifs.Create(ctx, notif)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"userID": userID.Hex(),
			"type":   notifType,
		}).Error("Failed to write notification")
		return
	}

	s.pusher.Push(userID.Hex(), models.Event{
		Type: models.EventNewNotification,
		Data: created,
	})
}

func (s *ConnectionService) displayName(ctx context.Context, userID primitive.ObjectID) string {
	if s.users == nil {
		return ""
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	return user.Username
}

func (s *ConnectionService) sendAcceptedMail(ctx context.Context, conn *models.Connection) {
	if s.mailer == nil || !s.mailer.Enabled() || s.users == nil {
		return
	}

	sender, err := s.users.GetUserByID(ctx, conn.FromUserID)
	if err != nil || sender == nil {
		return
	}
	accepterName := s.displayName(ctx, conn.ToUserID)
	if accepterName == "" {
		accepterName = "Another member"
	}

	body := fmt.Sprintf("%s accepted your connection request. You are now connected!", accepterName)
	if err := s.mailer.Send(sender.Email, "Connection request accepted", body); err != nil {
		logrus.WithError(err).Warnf("Failed to send acceptance email to user %s", conn.FromUserID.Hex())
	}
}
