package model

import (
	"context"
	"time"

	"github.com/nutriask/server/internal/agent/query"
)

// ConversationRecord is one completed exchange. Records are append-only.
type ConversationRecord struct {
	UserID     string         `bson:"-" json:"userId"`
	Question   string         `bson:"question" json:"question"`
	Answer     string         `bson:"answer" json:"answer"`
	MongoQuery map[string]any `bson:"mongoQuery,omitempty" json:"mongoQuery,omitempty"`
	Result     []Product      `bson:"result,omitempty" json:"result,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt" json:"createdAt"`
}

// Summary is the running per-user summary.
type Summary struct {
	UserID      string    `bson:"-" json:"userId"`
	Summary     string    `bson:"summary" json:"summary"`
	LastUpdated time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

type ConversationRepository interface {
	// SaveConversation appends a record; it never updates an existing one
	SaveConversation(ctx context.Context, rec ConversationRecord) error

	// RecentConversations returns up to limit records for the user, newest first
	RecentConversations(ctx context.Context, userID string, limit int) ([]ConversationRecord, error)

	// LatestSummary returns the user's summary, or nil when there is none
	LatestSummary(ctx context.Context, userID string) (*Summary, error)
}

type ProductRepository interface {
	// FindProducts runs a structured query with its effective limit
	FindProducts(ctx context.Context, q query.Query) ([]Product, error)
}
