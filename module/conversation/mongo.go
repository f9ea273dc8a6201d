package conversation

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linkhub/tools/errs"
)

// MongoStore relies on a unique index over pair_key to settle concurrent
// creates of the same conversation.
type MongoStore struct {
	convColl *mongo.Collection
	msgColl  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		convColl: db.Collection(Conversation{}.GetTableName()),
		msgColl:  db.Collection(Message{}.GetTableName()),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.convColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: FieldPairKey, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pair_key"),
		},
		{Keys: bson.D{{Key: FieldParticipants, Value: 1}, {Key: FieldUpdatedAt, Value: -1}}},
	})
	if err != nil {
		return storeErr(err, "ensure_indexes")
	}
	_, err = s.msgColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: FieldConversationID, Value: 1}, {Key: FieldCreatedAt, Value: -1}}},
		{Keys: bson.D{{Key: FieldConversationID, Value: 1}, {Key: FieldRecipientID, Value: 1}, {Key: FieldRead, Value: 1}}},
	})
	return storeErr(err, "ensure_indexes")
}

func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return errs.ErrStoreUnavailable.WrapMsg(err.Error(), "op", op)
}

func (s *MongoStore) findConv(ctx context.Context, filter bson.M, what string) (*Conversation, error) {
	var c Conversation
	err := s.convColl.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation", "by", what)
	}
	if err != nil {
		return nil, storeErr(err, "find_conversation")
	}
	return &c, nil
}

func (s *MongoStore) FindByPair(ctx context.Context, pairKey string) (*Conversation, error) {
	return s.findConv(ctx, bson.M{FieldPairKey: pairKey}, pairKey)
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Conversation, error) {
	return s.findConv(ctx, bson.M{FieldID: id}, id)
}

func (s *MongoStore) Create(ctx context.Context, c *Conversation) error {
	_, err := s.convColl.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrDuplicate.WrapMsg("conversation pair exists", "pair", c.PairKey)
	}
	return storeErr(err, "create_conversation")
}

func (s *MongoStore) ListByParticipant(ctx context.Context, identity string) ([]*Conversation, error) {
	cur, err := s.convColl.Find(ctx, bson.M{FieldParticipants: identity},
		options.Find().SetSort(bson.D{{Key: FieldUpdatedAt, Value: -1}}))
	if err != nil {
		return nil, storeErr(err, "list_conversations")
	}
	var out []*Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr(err, "list_conversations_decode")
	}
	return out, nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, m *Message) error {
	if _, err := s.msgColl.InsertOne(ctx, m); err != nil {
		return storeErr(err, "insert_message")
	}
	// only move the pointer forward; a concurrent newer append wins
	_, err := s.convColl.UpdateOne(ctx,
		bson.M{FieldID: m.ConversationID, FieldLastMessageAt: bson.M{"$lte": m.CreatedAt}},
		bson.M{"$set": bson.M{
			FieldLastMessageID: m.ID,
			FieldLastMessageAt: m.CreatedAt,
			FieldUpdatedAt:     m.CreatedAt,
		}})
	return storeErr(err, "advance_last_message")
}

func (s *MongoStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	err := s.msgColl.FindOne(ctx, bson.M{FieldID: id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("message", "id", id)
	}
	if err != nil {
		return nil, storeErr(err, "get_message")
	}
	return &m, nil
}

func (s *MongoStore) Messages(ctx context.Context, conversationID string, page, limit int) ([]*Message, int64, error) {
	q := bson.M{FieldConversationID: conversationID}
	total, err := s.msgColl.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, storeErr(err, "count_messages")
	}
	cur, err := s.msgColl.Find(ctx, q, options.Find().
		SetSort(bson.D{{Key: FieldCreatedAt, Value: -1}, {Key: FieldID, Value: -1}}).
		SetSkip(int64(page-1)*int64(limit)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, storeErr(err, "list_messages")
	}
	out := make([]*Message, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, storeErr(err, "list_messages_decode")
	}
	return out, total, nil
}

func (s *MongoStore) MarkRead(ctx context.Context, conversationID, recipient string) (int64, error) {
	res, err := s.msgColl.UpdateMany(ctx,
		bson.M{FieldConversationID: conversationID, FieldRecipientID: recipient, FieldRead: false},
		bson.M{"$set": bson.M{FieldRead: true}})
	if err != nil {
		return 0, storeErr(err, "mark_read")
	}
	return res.ModifiedCount, nil
}
