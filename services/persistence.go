package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"signage-server/models"
)

const settingsDocID = "current"

// InitMongo initializes the MongoDB connection.
func InitMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	slog.Info("Connected to MongoDB")
	return client, nil
}

// Store is the persistence gateway: a durable snapshot of settings and
// the display roster. Writes are last-write-wins; the in-memory
// registries stay authoritative when a write fails.
type Store struct {
	db *mongo.Database
}

func NewStore(client *mongo.Client, databaseName string) *Store {
	return &Store{db: client.Database(databaseName)}
}

// Database exposes the underlying handle for collaborators (audit log).
func (s *Store) Database() *mongo.Database {
	return s.db
}

// EnsureIndexes creates the indexes the gateway relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	displays := s.db.Collection("displays")
	_, err := displays.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"status": 1}},
		{Keys: bson.M{"last_heartbeat": 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create display indexes: %w", err)
	}

	audit := s.db.Collection("audit_log")
	_, err = audit.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"timestamp": -1}},
		{Keys: bson.M{"action": 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}

	return nil
}

type settingsDoc struct {
	ID   string          `bson:"_id"`
	Data models.Settings `bson:"data"`
}

// Load reads the persisted settings document and display roster.
// Missing documents are not an error; the caller starts empty.
func (s *Store) Load(ctx context.Context) (models.Settings, []models.Display, error) {
	settings := models.Settings{}

	var doc settingsDoc
	err := s.db.Collection("settings").FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if doc.Data != nil {
		settings = doc.Data
	}

	cursor, err := s.db.Collection("displays").Find(ctx, bson.M{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load displays: %w", err)
	}
	defer cursor.Close(ctx)

	var displays []models.Display
	if err := cursor.All(ctx, &displays); err != nil {
		return nil, nil, fmt.Errorf("failed to decode displays: %w", err)
	}

	slog.Info("Loaded persisted state", "displays", len(displays), "settingsKeys", len(settings))
	return settings, displays, nil
}

// SaveSettings upserts the settings snapshot. Last write wins.
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	_, err := s.db.Collection("settings").ReplaceOne(
		ctx,
		bson.M{"_id": settingsDocID},
		settingsDoc{ID: settingsDocID, Data: settings},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// SaveDisplays upserts the current roster and prunes records for
// displays that no longer exist.
func (s *Store) SaveDisplays(ctx context.Context, displays []models.Display) error {
	collection := s.db.Collection("displays")

	ids := make([]string, 0, len(displays))
	for i := range displays {
		d := displays[i]
		ids = append(ids, d.ID)
		_, err := collection.ReplaceOne(
			ctx,
			bson.M{"_id": d.ID},
			d,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to save display %s: %w", d.ID, err)
		}
	}

	_, err := collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": ids}})
	if err != nil {
		return fmt.Errorf("failed to prune deleted displays: %w", err)
	}
	return nil
}
