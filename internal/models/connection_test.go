package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newObjectID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

func TestConnectionInvolves(t *testing.T) {
	a := newObjectID(t, "650000000000000000000001")
	b := newObjectID(t, "650000000000000000000002")
	c := newObjectID(t, "650000000000000000000003")

	conn := Connection{FromUserID: a, ToUserID: b}
	require.True(t, conn.Involves(a))
	require.True(t, conn.Involves(b))
	require.False(t, conn.Involves(c))
}
