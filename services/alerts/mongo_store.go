package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Kubojah-Dan/CoinVista/models"
)

// MongoDB names for the alert store
const (
	mongoDBName          = "coinvista"
	mongoAlertCollection = "alerts"
	mongoCounterDoc      = "alerts"
)

// MongoStore is a MongoDB-backed alert store, matching the deployment the
// service originally ran on. Selected when MONGODB_URI is configured.
type MongoStore struct {
	client   *mongo.Client
	alerts   *mongo.Collection
	counters *mongo.Collection
}

// alertDoc is the MongoDB document shape. Prices are stored as Decimal128
// to keep threshold comparisons exact.
type alertDoc struct {
	ID                uint                 `bson:"_id"`
	UserID            uint                 `bson:"user_id"`
	Symbol            string               `bson:"symbol"`
	TargetPrice       primitive.Decimal128 `bson:"target_price"`
	Direction         string               `bson:"direction"`
	Triggered         bool                 `bson:"triggered"`
	TriggeredAt       *time.Time           `bson:"triggered_at,omitempty"`
	LastObservedPrice primitive.Decimal128 `bson:"last_observed_price"`
	CreatedAt         time.Time            `bson:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at"`
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(mongoDBName)
	store := &MongoStore{
		client:   client,
		alerts:   db.Collection(mongoAlertCollection),
		counters: db.Collection("counters"),
	}

	log.Println("MongoDB alert store connected")
	return store, nil
}

// Close disconnects the underlying client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Create(ctx context.Context, alert *models.Alert) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	alert.ID = id
	alert.CreatedAt = now
	alert.UpdatedAt = now

	doc, err := toDoc(alert)
	if err != nil {
		return err
	}

	_, err = s.alerts.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) ListByUser(ctx context.Context, userID uint) ([]models.Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.alerts.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAlerts(ctx, cursor)
}

func (s *MongoStore) Delete(ctx context.Context, id, userID uint) error {
	result, err := s.alerts.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (s *MongoStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	cursor, err := s.alerts.Find(ctx, bson.M{"triggered": false})
	if err != nil {
		return nil, err
	}
	return decodeAlerts(ctx, cursor)
}

func (s *MongoStore) MarkTriggered(ctx context.Context, id uint, observedPrice decimal.Decimal, at time.Time) (*models.Alert, error) {
	observed, err := primitive.ParseDecimal128(observedPrice.String())
	if err != nil {
		return nil, fmt.Errorf("invalid observed price: %w", err)
	}

	// The triggered: false filter makes this a single atomic compare-and-set
	result := s.alerts.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "triggered": false},
		bson.M{"$set": bson.M{
			"triggered":           true,
			"triggered_at":        at,
			"last_observed_price": observed,
			"updated_at":          at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var doc alertDoc
	if err := result.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return fromDoc(&doc)
}

func (s *MongoStore) RecordObservedPrice(ctx context.Context, id uint, price decimal.Decimal) {
	observed, err := primitive.ParseDecimal128(price.String())
	if err != nil {
		return
	}
	s.alerts.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_observed_price": observed, "updated_at": time.Now().UTC()}},
	)
}

// nextID allocates a sequential id from the counters collection
func (s *MongoStore) nextID(ctx context.Context) (uint, error) {
	result := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": mongoCounterDoc},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := result.Decode(&doc); err != nil {
		return 0, fmt.Errorf("failed to allocate alert id: %w", err)
	}
	return uint(doc.Seq), nil
}

func decodeAlerts(ctx context.Context, cursor *mongo.Cursor) ([]models.Alert, error) {
	defer cursor.Close(ctx)

	var alerts []models.Alert
	for cursor.Next(ctx) {
		var doc alertDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		alert, err := fromDoc(&doc)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, cursor.Err()
}

func toDoc(alert *models.Alert) (*alertDoc, error) {
	target, err := primitive.ParseDecimal128(alert.TargetPrice.String())
	if err != nil {
		return nil, fmt.Errorf("invalid target price: %w", err)
	}
	observed, err := primitive.ParseDecimal128(alert.LastObservedPrice.String())
	if err != nil {
		return nil, fmt.Errorf("invalid observed price: %w", err)
	}
	return &alertDoc{
		ID:                alert.ID,
		UserID:            alert.UserID,
		Symbol:            alert.Symbol,
		TargetPrice:       target,
		Direction:         alert.Direction,
		Triggered:         alert.Triggered,
		TriggeredAt:       alert.TriggeredAt,
		LastObservedPrice: observed,
		CreatedAt:         alert.CreatedAt,
		UpdatedAt:         alert.UpdatedAt,
	}, nil
}

func fromDoc(doc *alertDoc) (*models.Alert, error) {
	target, err := decimal.NewFromString(doc.TargetPrice.String())
	if err != nil {
		return nil, fmt.Errorf("invalid stored target price: %w", err)
	}
	observed, err := decimal.NewFromString(doc.LastObservedPrice.String())
	if err != nil {
		return nil, fmt.Errorf("invalid stored observed price: %w", err)
	}
	return &models.Alert{
		ID:                doc.ID,
		UserID:            doc.UserID,
		Symbol:            doc.Symbol,
		TargetPrice:       target,
		Direction:         doc.Direction,
		Triggered:         doc.Triggered,
		TriggeredAt:       doc.TriggeredAt,
		LastObservedPrice: observed,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}, nil
}
