package mongostore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

func TestBSONRoundTripKeepsFieldOrder(t *testing.T) {
	def := schema.Definition{Fields: schema.NewFields(schema.NewField("zeta"), schema.NewField("alpha"))}
	doc, err := toBSON(def)
	if err != nil {
		t.Fatal(err)
	}
	doc = append(bson.D{{Key: "_id", Value: "users"}}, doc...)
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeDefinition(raw)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha"}, got.Fields.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
}

func TestFromRawNormalizesObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	raw, err := bson.Marshal(bson.D{{Key: "_id", Value: oid}, {Key: "n", Value: int32(3)}, {Key: "tags", Value: bson.A{"a"}}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := fromRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"_id": oid.Hex(), "n": float64(3), "tags": []any{"a"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("doc (-want +got):\n%s", diff)
	}
}

func TestIDFilter(t *testing.T) {
	if got := idFilter("u1"); !cmp.Equal(got, bson.D{{Key: "_id", Value: "u1"}}) {
		t.Fatalf("filter %v", got)
	}
	hex := primitive.NewObjectID().Hex()
	if _, ok := idValue(hex).(primitive.ObjectID); !ok {
		t.Fatal("hex id not stored as ObjectID")
	}
}
