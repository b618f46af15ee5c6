package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func openTestMongo(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MEMEBOARD_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("MEMEBOARD_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, uri, fmt.Sprintf("memeboard_test_%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() {
		s.memes.Database().Drop(ctx)
		s.Close()
	})
	return s
}

// Documents written by older clients may lack isLocked and editHistory.
func TestMongoApplyEditOnSparseDocument(t *testing.T) {
	s := openTestMongo(t)
	ctx := context.Background()

	_, err := s.memes.InsertOne(ctx, bson.D{
		{Key: "_id", Value: "legacy-1"},
		{Key: "title", Value: "old title"},
		{Key: "tags", Value: bson.A{"old"}},
		{Key: "imageUrl", Value: "https://res.cloudinary.com/demo/image/upload/v1/memes/legacy.jpg"},
		{Key: "createdAt", Value: time.Now().UTC()},
		{Key: "editedByUsers", Value: 0},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	m, err := s.ApplyEdit(ctx, "legacy-1", "new title", []string{"new"})
	if err != nil {
		t.Fatalf("apply edit on document without isLocked: %v", err)
	}
	if m.Title != "new title" || m.EditedByUsers != 1 || len(m.EditHistory) != 1 {
		t.Errorf("unexpected result %+v", m)
	}
	if m.EditHistory[0].PreviousName != "old title" {
		t.Errorf("history should hold the old title, got %+v", m.EditHistory[0])
	}

	locked := true
	if _, err := s.Update(ctx, "legacy-1", UpdateParams{IsLocked: &locked}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := s.ApplyEdit(ctx, "legacy-1", "x", nil); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}
