package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"pos-terminal/internal/models"
)

const (
	ordersCollection   = "orders"
	countersCollection = "order_counters"
)

// MongoStore writes orders as single documents with embedded lines
type MongoStore struct {
	client     *mongo.Client
	orders     *mongo.Collection
	counters   *mongo.Collection
	terminalID string
}

type orderLineDocument struct {
	LineID    string                `bson:"line_id"`
	ItemID    string                `bson:"item_id"`
	Name      string                `bson:"name"`
	Mode      string                `bson:"pricing_mode"`
	Quantity  int                   `bson:"quantity"`
	WeightKg  *primitive.Decimal128 `bson:"weight_kg,omitempty"`
	Variant   string                `bson:"variant,omitempty"`
	UnitPrice primitive.Decimal128  `bson:"unit_price"`
	LineTotal primitive.Decimal128  `bson:"line_total"`
}

type orderDocument struct {
	ID               primitive.ObjectID   `bson:"_id"`
	LocalID          string               `bson:"local_id"`
	Number           string               `bson:"number"`
	LocalNumber      string               `bson:"local_number"`
	TerminalID       string               `bson:"terminal_id"`
	Type             string               `bson:"type"`
	TableNumber      *int                 `bson:"table_number,omitempty"`
	DeliveryAddress  *string              `bson:"delivery_address,omitempty"`
	DeliveryTime     *time.Time           `bson:"delivery_time,omitempty"`
	ContactNumber    *string              `bson:"contact_number,omitempty"`
	ServerName       string               `bson:"server_name,omitempty"`
	Lines            []orderLineDocument  `bson:"lines"`
	Subtotal         primitive.Decimal128 `bson:"subtotal"`
	DiscountType     string               `bson:"discount_type"`
	Discount         primitive.Decimal128 `bson:"discount"`
	Total            primitive.Decimal128 `bson:"total"`
	Tendered         primitive.Decimal128 `bson:"tendered"`
	Change           primitive.Decimal128 `bson:"change_due"`
	PaymentMethod    string               `bson:"payment_method"`
	PaymentReference string               `bson:"payment_reference,omitempty"`
	CreatedAt        time.Time            `bson:"created_at"`
	SyncedAt         time.Time            `bson:"synced_at"`
}

// ConnectMongo opens a client and ensures the unique local_id index
func ConnectMongo(ctx context.Context, uri, database, terminalID string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		orders:     db.Collection(ordersCollection),
		counters:   db.Collection(countersCollection),
		terminalID: terminalID,
	}

	_, err = s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "local_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create local_id index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) CreateOrder(ctx context.Context, order *models.Order) (Receipt, error) {
	if r, ok, err := s.find(ctx, order.LocalID); err != nil || ok {
		return r, err
	}

	doc, err := prepareOrder(order, s.terminalID, func() (int, error) {
		return s.nextSeq(ctx, order.CreatedAt.UTC().Format("2006-01-02"))
	})
	if err != nil {
		return Receipt{}, err
	}

	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r, ok, ferr := s.find(ctx, order.LocalID)
			if ferr == nil && ok {
				return r, nil
			}
		}
		return Receipt{}, classifyMongo("failed to create order", err)
	}
	return Receipt{AssignedID: doc.ID.Hex(), AssignedNumber: doc.Number}, nil
}

// prepareOrder encodes the order before drawing a number, so a payload the
// store could never accept does not consume one. A number drawn for an
// insert that then fails is not returned; the back-office sequence may skip.
func prepareOrder(order *models.Order, terminalID string, next func() (int, error)) (*orderDocument, error) {
	doc, err := newOrderDocument(order, terminalID)
	if err != nil {
		return nil, models.NewValidationError("failed to encode order", err)
	}
	seq, err := next()
	if err != nil {
		return nil, err
	}
	doc.Number = models.GenerateOrderNumber(order.CreatedAt.UTC(), seq)
	return doc, nil
}

func (s *MongoStore) nextSeq(ctx context.Context, day string) (int, error) {
	var counter struct {
		Seq int `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": day},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, classifyMongo("failed to assign order number", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) find(ctx context.Context, localID string) (Receipt, bool, error) {
	var existing orderDocument
	err := s.orders.FindOne(ctx, bson.M{"local_id": localID}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Receipt{}, false, nil
	}
	if err != nil {
		return Receipt{}, false, classifyMongo("failed to look up order", err)
	}
	return Receipt{AssignedID: existing.ID.Hex(), AssignedNumber: existing.Number}, true, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return classifyMongo("remote store unreachable", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func newOrderDocument(order *models.Order, terminalID string) (*orderDocument, error) {
	money := func(d decimal.Decimal) (primitive.Decimal128, error) {
		return primitive.ParseDecimal128(models.RoundMoney(d).StringFixed(models.MoneyPlaces))
	}

	doc := &orderDocument{
		ID:               primitive.NewObjectID(),
		LocalID:          order.LocalID,
		LocalNumber:      order.Number,
		TerminalID:       terminalID,
		Type:             string(order.Fulfillment.Type),
		TableNumber:      order.Fulfillment.TableNumber,
		DeliveryAddress:  order.Fulfillment.DeliveryAddress,
		DeliveryTime:     order.Fulfillment.DeliveryTime,
		ContactNumber:    order.Fulfillment.ContactNumber,
		ServerName:       order.ServerName,
		DiscountType:     string(order.DiscountType),
		PaymentMethod:    string(order.Payment.Method),
		PaymentReference: order.Payment.Reference,
		CreatedAt:        order.CreatedAt,
		SyncedAt:         time.Now().UTC(),
	}

	var err error
	for _, f := range []struct {
		dst *primitive.Decimal128
		src decimal.Decimal
	}{
		{&doc.Subtotal, order.Subtotal},
		{&doc.Discount, order.Discount},
		{&doc.Total, order.Total},
		{&doc.Tendered, order.Tendered},
		{&doc.Change, order.Change},
	} {
		if *f.dst, err = money(f.src); err != nil {
			return nil, err
		}
	}

	for _, line := range order.Lines {
		ld := orderLineDocument{
			LineID:   line.ID,
			ItemID:   line.ItemID,
			Name:     line.Name,
			Mode:     string(line.Mode),
			Quantity: line.Quantity,
			Variant:  line.Variant,
		}
		if ld.UnitPrice, err = money(line.UnitPrice); err != nil {
			return nil, err
		}
		if ld.LineTotal, err = money(line.LineTotal); err != nil {
			return nil, err
		}
		if line.WeightKg != nil {
			w, err := money(*line.WeightKg)
			if err != nil {
				return nil, err
			}
			ld.WeightKg = &w
		}
		doc.Lines = append(doc.Lines, ld)
	}
	return doc, nil
}

func classifyMongo(msg string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return models.NewNetworkError(msg, err)
	}

	var writeErr mongo.WriteException
	var cmdErr mongo.CommandError
	if errors.As(err, &writeErr) || errors.As(err, &cmdErr) {
		return models.NewValidationError(msg, err)
	}
	return models.NewNetworkError(msg, err)
}
