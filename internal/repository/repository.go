package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"flipbook-fulfillment-service/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrMalformedRecord = errors.New("malformed order record")
)

const ordersCollection = "flipbook_orders"

// MongoOrderRepository stores one document per order.
type MongoOrderRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		col: db.Collection(ordersCollection),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique order number index and the list indexes.
func (m *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

func (m *MongoOrderRepository) Insert(ctx context.Context, o *model.Order) (string, error) {
	stampNew(o, m.now)

	doc := encodeOrder(o)
	doc.ID = primitive.NewObjectID()

	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("order number %s already exists: %w", o.OrderNumber, err)
		}
		return "", err
	}
	o.ID = doc.ID.Hex()
	return o.ID, nil
}

// stampNew fills defaults the caller left unset. Timestamps already on the
// order are kept so the service clock stays authoritative.
func stampNew(o *model.Order, now func() time.Time) {
	if o.Status == "" {
		o.Status = model.StatusPendingPayment
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if len(o.History) == 0 {
		o.History = []model.StatusRecord{{Status: o.Status, Note: model.OrderReceivedNote, At: o.CreatedAt}}
	}
}

func (m *MongoOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return m.findOne(ctx, bson.M{"order_number": orderNumber})
}

func (m *MongoOrderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*model.Order, error) {
	raw, err := m.col.FindOne(ctx, filter).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc orderDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return decodeOrder(&doc)
}

func (m *MongoOrderRepository) List(ctx context.Context, f model.OrderFilters) ([]*model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := m.col.Find(ctx, listFilter(f), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*model.Order{}
	for cur.Next(ctx) {
		var doc orderDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		o, err := decodeOrder(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, cur.Err()
}

func (m *MongoOrderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, adminNote *string, record model.StatusRecord) error {
	set := bson.M{
		"status": string(status),
	}
	if adminNote != nil {
		set["admin_note"] = *adminNote
	}
	return m.update(ctx, id, set, record)
}

func (m *MongoOrderRepository) UpdateTracking(ctx context.Context, id, courier, trackingNumber string, record model.StatusRecord) error {
	return m.update(ctx, id, bson.M{
		"courier":         courier,
		"tracking_number": trackingNumber,
		"status":          string(model.StatusShipping),
	}, record)
}

func (m *MongoOrderRepository) update(ctx context.Context, id string, set bson.M, record model.StatusRecord) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	if record.At.IsZero() {
		record.At = m.now()
	}
	set["updated_at"] = record.At
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"history": encodeStatusRecord(record)},
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// listFilter matches status exactly and the search text as a literal,
// case-insensitive substring of order number, customer name or phone.
func listFilter(f model.OrderFilters) bson.M {
	filter := bson.M{}
	if f.Status != nil {
		filter["status"] = string(*f.Status)
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"order_number": pattern},
			bson.M{"customer_name": pattern},
			bson.M{"customer_phone": pattern},
		}
	}
	return filter
}
