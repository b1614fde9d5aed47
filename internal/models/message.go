package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one direct message between two users. Either Text or Image must
// be set. Image is a blob-store URL, never inline data.
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   string             `bson:"sender_id" json:"senderId"`
	ReceiverID string             `bson:"receiver_id" json:"receiverId"`
	Text       string             `bson:"text,omitempty" json:"text,omitempty"`
	Image      string             `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
}
