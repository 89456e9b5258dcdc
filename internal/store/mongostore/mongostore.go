// Package mongostore serves the store contract from MongoDB. Sub-collections
// are stored as collections with dotted names and schema definitions live in
// the metadata_schemas collection of each database, keyed by metadata key.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// Store wraps a connected client.
type Store struct {
	cli *mongo.Client
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and pings the server.
func Open(ctx context.Context, uri string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(cli), nil
}

func New(cli *mongo.Client) *Store { return &Store{cli: cli} }

func (s *Store) Close(ctx context.Context) error { return s.cli.Disconnect(ctx) }

func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := s.cli.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !store.SystemDatabase(n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) exists(ctx context.Context, db string) (bool, error) {
	names, err := s.cli.ListDatabaseNames(ctx, bson.D{{Key: "name", Value: db}})
	if err != nil {
		return false, fmt.Errorf("list databases: %w", err)
	}
	return len(names) > 0, nil
}

// CreateDatabase materializes db by creating its metadata collection, since
// MongoDB only lists databases holding at least one collection.
func (s *Store) CreateDatabase(ctx context.Context, db string) (bool, error) {
	if err := docpath.ValidateName(db); err != nil {
		return false, err
	}
	ok, err := s.exists(ctx, db)
	if err != nil || ok {
		return false, err
	}
	if err := s.cli.Database(db).CreateCollection(ctx, store.MetadataCollection); err != nil {
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.Name == "NamespaceExists" {
			return false, nil
		}
		return false, fmt.Errorf("create database %s: %w", db, err)
	}
	return true, nil
}

func (s *Store) collectionNames(ctx context.Context, db string) ([]string, error) {
	names, err := s.cli.Database(db).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func (s *Store) ListCollections(ctx context.Context, db string) ([]string, error) {
	ok, err := s.exists(ctx, db)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("database %q: %w", db, store.ErrNotFound)
	}
	names, err := s.collectionNames(ctx, db)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(names, func(n string) bool {
		return n == store.MetadataCollection || n == "fe_metadata"
	})
	slices.Sort(out)
	return out, nil
}

func (s *Store) CreateCollection(ctx context.Context, db, name string) error {
	p := docpath.PathFromStorageName(name)
	if err := docpath.ValidatePath(p); err != nil {
		return err
	}
	if docpath.IsDocument(p) {
		return fmt.Errorf("collection %q addresses a document", name)
	}
	err := s.cli.Database(db).CreateCollection(ctx, docpath.StorageName(p))
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Name == "NamespaceExists" {
		return fmt.Errorf("collection %q: %w", name, store.ErrExists)
	}
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) hasCollection(ctx context.Context, db, name string) (bool, error) {
	names, err := s.cli.Database(db).ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (s *Store) ListDocuments(ctx context.Context, db, collection string) ([]map[string]any, error) {
	ok, err := s.hasCollection(ctx, db, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, store.ErrNotFound)
	}
	cur, err := s.cli.Database(db).Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)
	var docs []map[string]any
	for cur.Next(ctx) {
		doc, err := fromRaw(cur.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	store.SortByID(docs)
	return docs, nil
}

func (s *Store) GetDocument(ctx context.Context, db, collection, id string) (map[string]any, error) {
	raw, err := s.cli.Database(db).Collection(collection).FindOne(ctx, idFilter(id)).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return fromRaw(raw)
}

func (s *Store) UpsertDocument(ctx context.Context, db, collection, id string, data map[string]any) error {
	if err := docpath.ValidateName(id); err != nil {
		return err
	}
	doc, err := toBSON(data)
	if err != nil {
		return err
	}
	doc = slices.DeleteFunc(doc, func(e bson.E) bool { return e.Key == store.IDField })
	doc = append(bson.D{{Key: store.IDField, Value: idValue(id)}}, doc...)
	_, err = s.cli.Database(db).Collection(collection).
		ReplaceOne(ctx, idFilter(id), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) metadata(db string) *mongo.Collection {
	return s.cli.Database(db).Collection(store.MetadataCollection)
}

func (s *Store) GetMetadata(ctx context.Context, db, key string) (schema.Definition, error) {
	raw, err := s.metadata(db).FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return schema.Definition{}, fmt.Errorf("metadata %q: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return schema.Definition{}, fmt.Errorf("find metadata %q: %w", key, err)
	}
	return decodeDefinition(raw)
}

func (s *Store) ListMetadata(ctx context.Context, db string) (schema.Envelope, error) {
	cur, err := s.metadata(db).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find metadata: %w", err)
	}
	defer cur.Close(ctx)
	out := schema.Envelope{}
	for cur.Next(ctx) {
		key, ok := cur.Current.Lookup("_id").StringValueOK()
		if !ok {
			continue
		}
		def, err := decodeDefinition(cur.Current)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", key, err)
		}
		out[key] = def
	}
	return out, cur.Err()
}

func (s *Store) SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error {
	if key == "" {
		return fmt.Errorf("save metadata: empty key")
	}
	doc, err := toBSON(def)
	if err != nil {
		return err
	}
	doc = append(bson.D{{Key: "_id", Value: key}}, doc...)
	_, err = s.metadata(db).ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save metadata %q: %w", key, err)
	}
	return nil
}

// idValue stores hex object ids as ObjectIDs so documents created by other
// tools are addressable; every other id is a string.
func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idFilter(id string) bson.D {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid, id}}}}}
	}
	return bson.D{{Key: "_id", Value: id}}
}

// toBSON converts v through JSON so field order and the JSON shape of schema
// types are kept.
func toBSON(v any) (bson.D, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(b, false, &doc); err != nil {
		return nil, fmt.Errorf("convert to bson: %w", err)
	}
	return doc, nil
}

func fromRaw(raw bson.Raw) (map[string]any, error) {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert from bson: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	switch id := raw.Lookup("_id"); id.Type {
	case bson.TypeObjectID:
		doc[store.IDField] = id.ObjectID().Hex()
	case bson.TypeString:
		doc[store.IDField] = id.StringValue()
	default:
		doc[store.IDField] = fmt.Sprint(doc[store.IDField])
	}
	return doc, nil
}

func decodeDefinition(raw bson.Raw) (schema.Definition, error) {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return schema.Definition{}, fmt.Errorf("convert from bson: %w", err)
	}
	var def schema.Definition
	if err := json.Unmarshal(b, &def); err != nil {
		return schema.Definition{}, err
	}
	return def, nil
}
