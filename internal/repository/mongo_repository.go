package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"CapIot.webnode/internal/models"
)

// readingDocument is the persisted shape. Field names match documents written
// by earlier mongoose-based deployments, so both can share a collection.
type readingDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	DeviceID    string             `bson:"device_id"`
	Temperature *float64           `bson:"temperature,omitempty"`
	Humidity    *float64           `bson:"humidity,omitempty"`
	Light       *float64           `bson:"light,omitempty"`
	DistanceCM  *float64           `bson:"distance_cm,omitempty"`
	LEDState    *bool              `bson:"led_state,omitempty"`
	Timestamp   time.Time          `bson:"timestamp"`
	Version     int32              `bson:"__v"`
}

func toDocument(r *models.Reading) readingDocument {
	return readingDocument{
		DeviceID:    r.DeviceID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Light:       r.Light,
		DistanceCM:  r.DistanceCM,
		LEDState:    r.LEDState,
		Timestamp:   r.Timestamp,
	}
}

func (d readingDocument) toReading() models.Reading {
	return models.Reading{
		ID:          d.ID.Hex(),
		DeviceID:    d.DeviceID,
		Temperature: d.Temperature,
		Humidity:    d.Humidity,
		Light:       d.Light,
		DistanceCM:  d.DistanceCM,
		LEDState:    d.LEDState,
		Timestamp:   d.Timestamp.UTC(),
	}
}

// newestFirst orders by timestamp, breaking ties by insertion order.
var newestFirst = bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}

// MongoRepository stores readings as documents in a MongoDB collection.
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoRepository creates the client. The driver connects lazily, so an
// unreachable server is only detected by Ping.
// The database is the one named in the URI, or fallbackDB when it names none.
func NewMongoRepository(ctx context.Context, uri, fallbackDB, collection string, logger *slog.Logger) (*MongoRepository, error) {
	if uri == "" {
		return nil, errors.New("MONGO_URI is not set")
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid MONGO_URI: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = fallbackDB
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	return &MongoRepository{
		client:     client,
		collection: client.Database(dbName).Collection(collection),
		logger:     logger,
	}, nil
}

// Prepare creates the index backing the newest-first queries.
func (m *MongoRepository) Prepare(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    newestFirst,
		Options: options.Index().SetName("timestamp_desc"),
	})
	if err != nil {
		return storageErr("create index", err)
	}
	return nil
}

// InsertReading writes one document and sets r.ID to its ObjectID.
func (m *MongoRepository) InsertReading(ctx context.Context, r *models.Reading) error {
	doc := toDocument(r)
	doc.ID = primitive.NewObjectID()

	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		return storageErr("insert reading", err)
	}
	r.ID = doc.ID.Hex()
	m.logger.Debug("Reading inserted", "id", r.ID, "device_id", r.DeviceID)
	return nil
}

// ListReadings returns at most limit readings, newest first.
func (m *MongoRepository) ListReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	opts := options.Find().SetSort(newestFirst).SetLimit(int64(limit))
	cursor, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, storageErr("find readings", err)
	}
	defer cursor.Close(ctx)

	readings := make([]models.Reading, 0, min(limit, preallocLimit))
	for cursor.Next(ctx) {
		var doc readingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, storageErr("decode reading", err)
		}
		readings = append(readings, doc.toReading())
	}
	if err := cursor.Err(); err != nil {
		return nil, storageErr("iterate readings", err)
	}
	return readings, nil
}

// LatestReading returns the newest reading, or nil when the collection is empty.
func (m *MongoRepository) LatestReading(ctx context.Context) (*models.Reading, error) {
	var doc readingDocument
	err := m.collection.FindOne(ctx, bson.D{}, options.FindOne().SetSort(newestFirst)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find latest reading", err)
	}
	reading := doc.toReading()
	return &reading, nil
}

// Ping checks the connection to the primary.
func (m *MongoRepository) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
