package model

import "time"

// SlotLock is an advisory lock for serializing booking creation on one
// equipment/time slot. The lock id doubles as a unique key, so a second
// insert for the same slot fails with a duplicate key error.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
