package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/query"
	errx "github.com/nutriask/server/internal/core/error"
	logx "github.com/nutriask/server/pkg/logger"
)

// Collection names in the advisor database.
const (
	ProductsCollection      = "products"
	ConversationsCollection = "conversations"
	SummariesCollection     = "summaries"
)

// userKey stores 24-hex user ids as ObjectIDs and anything else as a string,
// so reads and writes always agree on the key type.
func userKey(userID string) any {
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		return oid
	}
	return userID
}

func userString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	}
	return ""
}

// ===================== Products =====================

type MongoProductRepository struct {
	coll *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{coll: db.Collection(ProductsCollection)}
}

func (r *MongoProductRepository) FindProducts(ctx context.Context, q query.Query) ([]model.Product, error) {
	opts := options.Find().SetLimit(int64(q.EffectiveLimit()))

	cur, err := r.coll.Find(ctx, q.Filter.BSON(), opts)
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("collection", ProductsCollection).Msg("failed to query products")
		return nil, errx.WrapMongo(err)
	}
	defer cur.Close(ctx)

	products := make([]model.Product, 0, q.EffectiveLimit())
	if err := cur.All(ctx, &products); err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("collection", ProductsCollection).Msg("failed to decode products")
		return nil, errx.WrapMongo(err)
	}
	return products, nil
}

// ===================== Conversations =====================

type conversationDoc struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty"`
	UserID                   any                `bson:"userId"`
	model.ConversationRecord `bson:",inline"`
}

type summaryDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        any                `bson:"userId"`
	model.Summary `bson:",inline"`
}

type MongoConversationRepository struct {
	conversations *mongo.Collection
	summaries     *mongo.Collection
}

func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{
		conversations: db.Collection(ConversationsCollection),
		summaries:     db.Collection(SummariesCollection),
	}
}

func (r *MongoConversationRepository) SaveConversation(ctx context.Context, rec model.ConversationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	doc := conversationDoc{UserID: userKey(rec.UserID), ConversationRecord: rec}

	if _, err := r.conversations.InsertOne(ctx, doc); err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("collection", ConversationsCollection).Msg("failed to insert conversation")
		return errx.WrapMongo(err)
	}
	return nil
}

func (r *MongoConversationRepository) RecentConversations(ctx context.Context, userID string, limit int) ([]model.ConversationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.conversations.Find(ctx, bson.D{{Key: "userId", Value: userKey(userID)}}, opts)
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("collection", ConversationsCollection).Msg("failed to query conversations")
		return nil, errx.WrapMongo(err)
	}
	defer cur.Close(ctx)

	var docs []conversationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errx.WrapMongo(err)
	}

	out := make([]model.ConversationRecord, 0, len(docs))
	for _, d := range docs {
		rec := d.ConversationRecord
		rec.UserID = userString(d.UserID)
		out = append(out, rec)
	}
	return out, nil
}

func (r *MongoConversationRepository) LatestSummary(ctx context.Context, userID string) (*model.Summary, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "lastUpdated", Value: -1}})

	var doc summaryDoc
	err := r.summaries.FindOne(ctx, bson.D{{Key: "userId", Value: userKey(userID)}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("collection", SummariesCollection).Msg("failed to load summary")
		return nil, errx.WrapMongo(err)
	}

	s := doc.Summary
	s.UserID = userString(doc.UserID)
	return &s, nil
}

var (
	_ model.ProductRepository      = (*MongoProductRepository)(nil)
	_ model.ConversationRepository = (*MongoConversationRepository)(nil)
)
