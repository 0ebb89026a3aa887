package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types emitted by the connection lifecycle.
const (
	NotificationRequestReceived = "REQUEST_RECEIVED"
	NotificationRequestAccepted = "REQUEST_ACCEPTED"
	NotificationRequestRejected = "REQUEST_REJECTED"
)

// Notification is an immutable per-user event record. Only the Read flag is
// ever updated after creation; this subsystem never deletes notifications.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Type        string             `bson:"type" json:"type"`
	RefID       primitive.ObjectID `bson:"ref_id" json:"ref_id"`
	ActorUserID primitive.ObjectID `bson:"actor_user_id" json:"actor_user_id"`
	ActorName   string             `bson:"actor_name,omitempty" json:"actor_name,omitempty"`
	Read        bool               `bson:"read" json:"read"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
