// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"dynconn/connectors/base"
)

// Mongo defaults
const (
	DefaultMongoDatabase   = "dynconn"
	DefaultMongoCollection = "conn_info"
	mongoConnectTimeout    = 10 * time.Second
)

// connInfoDoc is the stored document; the registry key is the _id
type connInfoDoc struct {
	ID       string `bson:"_id"`
	Driver   string `bson:"driver"`
	Username string `bson:"username"`
	Password string `bson:"password"`
	Host     string `bson:"host"`
	Port     int32  `bson:"port"`
	Database string `bson:"database"`
}

func docFromInfo(key string, info base.ConnInfo) connInfoDoc {
	return connInfoDoc{
		ID:       key,
		Driver:   info.Driver.String(),
		Username: info.Username,
		Password: info.Password,
		Host:     info.Host,
		Port:     info.Port,
		Database: info.Database,
	}
}

func (d connInfoDoc) toInfo() (base.ConnInfo, error) {
	driver, err := base.ParseDriver(d.Driver)
	if err != nil {
		return base.ConnInfo{}, fmt.Errorf("conn_info %s: %w", d.ID, err)
	}
	return base.NewConnInfo(driver, d.Username, d.Password, d.Host, d.Port, d.Database), nil
}

// MongoStorage keeps one document per descriptor in a MongoDB collection
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *log.Logger
}

// NewMongoStorage connects to uri and uses database.conn_info
func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}

	clientOpts := options.Client().ApplyURI(uri)
	clientOpts.SetConnectTimeout(mongoConnectTimeout)
	clientOpts.SetAppName("dynconn-storage")
	clientOpts.SetRetryWrites(true)
	clientOpts.SetRetryReads(true)

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := newMongoStorage(client.Database(database).Collection(DefaultMongoCollection))
	s.client = client
	s.logger.Printf("MongoDB conn_info storage initialized (database=%s)", database)
	return s, nil
}

func newMongoStorage(collection *mongo.Collection) *MongoStorage {
	return &MongoStorage{
		collection: collection,
		logger:     log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags),
	}
}

// Load returns the descriptor stored under key
func (s *MongoStorage) Load(ctx context.Context, key string) (base.ConnInfo, error) {
	var doc connInfoDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return base.ConnInfo{}, base.NewNotFound(key)
	}
	if err != nil {
		return base.ConnInfo{}, base.NewConnFailed(fmt.Sprintf("failed to load conn_info %s: %v", key, err))
	}

	info, err := doc.toInfo()
	if err != nil {
		return base.ConnInfo{}, base.NewException(err.Error())
	}
	return info, nil
}

// LoadAll returns every stored descriptor, skipping unreadable documents
func (s *MongoStorage) LoadAll(ctx context.Context) (map[string]base.ConnInfo, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, base.NewConnFailed(fmt.Sprintf("failed to load conn_info: %v", err))
	}

	var docs []connInfoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, base.NewConnFailed(fmt.Sprintf("failed to read conn_info: %v", err))
	}

	out := make(map[string]base.ConnInfo, len(docs))
	for _, doc := range docs {
		info, err := doc.toInfo()
		if err != nil {
			s.logger.Printf("Skipping unreadable document: %v", err)
			continue
		}
		out[doc.ID] = info
	}
	return out, nil
}

// Save inserts a new document under key
func (s *MongoStorage) Save(ctx context.Context, key string, info base.ConnInfo) error {
	if _, err := s.collection.InsertOne(ctx, docFromInfo(key, info)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: already stored", key))
		}
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: %v", key, err))
	}
	s.logger.Printf("Saved conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Update replaces the document under key, inserting it if missing
func (s *MongoStorage) Update(ctx context.Context, key string, info base.ConnInfo) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, docFromInfo(key, info), opts); err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to update conn_info %s: %v", key, err))
	}
	s.logger.Printf("Updated conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Delete removes the document under key
func (s *MongoStorage) Delete(ctx context.Context, key string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to delete conn_info %s: %v", key, err))
	}
	if res.DeletedCount == 0 {
		s.logger.Printf("Delete of conn_info %s matched no documents", key)
		return nil
	}
	s.logger.Printf("Deleted conn_info %s", key)
	return nil
}

// Close disconnects the client when this storage owns it
func (s *MongoStorage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
