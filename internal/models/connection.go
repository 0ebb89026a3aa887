package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Connection statuses. A connection starts as "pending" and is resolved by
// the receiving side; "accepted" is terminal, "rejected" can be recycled back
// to "pending" by a new request from either side.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Connection is a directional request between two users. At most one
// connection document exists per unordered user pair, enforced by a unique
// index on PairKey.
type Connection struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PairKey    string             `bson:"pair_key" json:"-"`
	FromUserID primitive.ObjectID `bson:"from_user_id" json:"from_user_id"`
	ToUserID   primitive.ObjectID `bson:"to_user_id" json:"to_user_id"`
	Status     string             `bson:"status" json:"status"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// PairKeyFor builds the canonical key for an unordered user pair, so both
// directions of a request map onto the same document.
func PairKeyFor(a, b primitive.ObjectID) string {
	ah, bh := a.Hex(), b.Hex()
	if bh < ah {
		ah, bh = bh, ah
	}
	return ah + ":" + bh
}

// Involves reports whether the given user is either side of the connection.
func (c *Connection) Involves(userID primitive.ObjectID) bool {
	return c.FromUserID == userID || c.ToUserID == userID
}
