package conversation

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linkhub/tools/errs"
)

// MongoDirectory checks identities against the domain's users collection.
// Ids that look like ObjectIDs are matched in both forms.
type MongoDirectory struct {
	coll *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database, collection string) *MongoDirectory {
	return &MongoDirectory{coll: db.Collection(collection)}
}

func (d *MongoDirectory) Exists(ctx context.Context, identity string) (bool, error) {
	ids := bson.A{identity}
	if oid, err := primitive.ObjectIDFromHex(identity); err == nil {
		ids = append(ids, oid)
	}
	n, err := d.coll.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Count().SetLimit(1))
	if err != nil {
		return false, errs.ErrStoreUnavailable.WrapMsg(err.Error(), "op", "user_exists")
	}
	return n > 0, nil
}

// StaticDirectory is a fixed allow-list, handy for tests and demos.
type StaticDirectory map[string]struct{}

func NewStaticDirectory(identities ...string) StaticDirectory {
	d := make(StaticDirectory, len(identities))
	for _, id := range identities {
		d[id] = struct{}{}
	}
	return d
}

func (d StaticDirectory) Exists(_ context.Context, identity string) (bool, error) {
	_, ok := d[identity]
	return ok, nil
}
