package model

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidID is returned for identifiers that are not 24-character hex ObjectIDs.
var ErrInvalidID = errors.New("invalid id format")

// NewID returns a fresh ObjectID in its canonical lower-case hex form.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ParseID validates raw and returns its canonical form.
func ParseID(raw string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidID
	}
	return oid.Hex(), nil
}

// NormalizeEmail is the single place emails are folded for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
