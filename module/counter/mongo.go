package counter

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollDeliveryCounter = "delivery_counter"

	FieldScope          = "scope"
	FieldRecipient      = "recipient"
	FieldConversationID = "conversation_id"
	FieldValue          = "value"
	FieldCreateTime     = "create_time"
	FieldUpdateTime     = "update_time"
)

type counterDoc struct {
	Scope          string    `bson:"scope"`
	Recipient      string    `bson:"recipient"`
	ConversationID string    `bson:"conversation_id"`
	Value          int64     `bson:"value"`
	CreateTime     time.Time `bson:"create_time"`
	UpdateTime     time.Time `bson:"update_time"`
}

// MongoStore keeps one document per key and mutates it with $inc/$set
// upserts, so concurrent writers never lose an increment.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollDeliveryCounter), now: time.Now}
}

// EnsureIndexes creates the unique key index the upsert relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: FieldScope, Value: 1},
			{Key: FieldRecipient, Value: 1},
			{Key: FieldConversationID, Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_counter_key"),
	})
	if err != nil {
		return unavailable(err, "ensure_indexes", Key{})
	}
	return nil
}

func keyFilter(key Key) bson.M {
	return bson.M{
		FieldScope:          string(key.Scope),
		FieldRecipient:      key.Recipient,
		FieldConversationID: key.ConversationID,
	}
}

func (s *MongoStore) Increment(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	now := s.now()
	update := bson.M{
		"$inc":         bson.M{FieldValue: int64(1)},
		"$setOnInsert": bson.M{FieldCreateTime: now},
		"$set":         bson.M{FieldUpdateTime: now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc counterDoc
	err := s.coll.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// two upserts raced to create the document; the loser now matches it
		err = s.coll.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&doc)
	}
	if err != nil {
		return 0, unavailable(err, "increment", key)
	}
	return doc.Value, nil
}

func (s *MongoStore) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.coll.UpdateOne(ctx, keyFilter(key), bson.M{
		"$set": bson.M{FieldValue: int64(0), FieldUpdateTime: s.now()},
	})
	if err != nil {
		return unavailable(err, "reset", key)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	var doc counterDoc
	err := s.coll.FindOne(ctx, keyFilter(key),
		options.FindOne().SetProjection(bson.M{FieldValue: 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err, "get", key)
	}
	return doc.Value, nil
}
