package notification

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linkhub/tools/errs"
)

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(Notification{}.GetTableName())}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: FieldRecipientID, Value: 1}, {Key: FieldCreatedAt, Value: -1}}},
		{Keys: bson.D{{Key: FieldRecipientID, Value: 1}, {Key: FieldRead, Value: 1}}},
	})
	return storeErr(err, "ensure_indexes")
}

func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return errs.ErrStoreUnavailable.WrapMsg(err.Error(), "op", op, "coll", CollNotification)
}

func (s *MongoStore) Create(ctx context.Context, n *Notification) error {
	_, err := s.coll.InsertOne(ctx, n)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrDuplicate.WrapMsg("notification exists", "id", n.ID)
	}
	return storeErr(err, "create")
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	err := s.coll.FindOne(ctx, bson.M{FieldID: id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("notification", "id", id)
	}
	if err != nil {
		return nil, storeErr(err, "get")
	}
	return &n, nil
}

func listFilter(recipient string, f Filter) bson.M {
	q := bson.M{FieldRecipientID: recipient}
	if f.Type != "" {
		q[FieldType] = f.Type
	}
	if f.Read != nil {
		q[FieldRead] = *f.Read
	}
	created := bson.M{}
	if !f.Since.IsZero() {
		created["$gte"] = f.Since
	}
	if !f.Until.IsZero() {
		created["$lte"] = f.Until
	}
	if len(created) > 0 {
		q[FieldCreatedAt] = created
	}
	return q
}

func (s *MongoStore) List(ctx context.Context, recipient string, f Filter) ([]*Notification, int64, error) {
	f = f.normalize()
	q := listFilter(recipient, f)

	total, err := s.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, storeErr(err, "count")
	}
	cur, err := s.coll.Find(ctx, q, options.Find().
		SetSort(bson.D{{Key: FieldCreatedAt, Value: -1}, {Key: FieldID, Value: -1}}).
		SetSkip(f.skip()).
		SetLimit(int64(f.Limit)))
	if err != nil {
		return nil, 0, storeErr(err, "list")
	}
	out := make([]*Notification, 0, f.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, storeErr(err, "list_decode")
	}
	return out, total, nil
}

func (s *MongoStore) TypeCounts(ctx context.Context, recipient string) (map[Type]int64, error) {
	cur, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{FieldRecipientID: recipient}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + FieldType, "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, storeErr(err, "type_counts")
	}
	var rows []struct {
		Type  Type  `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, storeErr(err, "type_counts_decode")
	}
	out := make(map[Type]int64, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}

func (s *MongoStore) CountUnread(ctx context.Context, recipient string) (int64, error) {
	c, err := s.coll.CountDocuments(ctx, bson.M{FieldRecipientID: recipient, FieldRead: false})
	return c, storeErr(err, "count_unread")
}

func (s *MongoStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{FieldID: id}, bson.M{"$set": bson.M{FieldRead: true}})
	if err != nil {
		return storeErr(err, "mark_read")
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("notification", "id", id)
	}
	return nil
}

func (s *MongoStore) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{FieldRecipientID: recipient, FieldRead: false},
		bson.M{"$set": bson.M{FieldRead: true}})
	if err != nil {
		return 0, storeErr(err, "mark_all_read")
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{FieldID: id})
	if err != nil {
		return storeErr(err, "delete")
	}
	if res.DeletedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("notification", "id", id)
	}
	return nil
}
