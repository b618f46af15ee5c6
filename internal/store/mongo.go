package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rcliao/memeboard/internal/model"
)

// MongoStore implements Store on MongoDB. Every mutation is a single-document
// write, so per-call atomicity comes from the server.
type MongoStore struct {
	client *mongo.Client
	memes  *mongo.Collection
	admins *mongo.Collection
	ids    *idSource
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "memeboard"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		memes:  db.Collection("memes"),
		admins: db.Collection("admins"),
		ids:    newIDSource(),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.memes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "tags", Value: "text"}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "editedByUsers", Value: -1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isFeatured", Value: -1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func (s *MongoStore) Get(ctx context.Context, id string) (*model.Meme, error) {
	var m model.Meme
	err := s.memes.FindOne(ctx, byID(id)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	normalizeDecoded(&m)
	return &m, nil
}

func (s *MongoStore) List(ctx context.Context, p ListParams) ([]model.Meme, error) {
	p = normalizeListParams(p)

	filter := bson.D{}
	if q := strings.TrimSpace(p.Search); q != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "tags", Value: re}},
		}}}
	}

	opts := options.Find().
		SetSort(mongoSort(p.SortBy)).
		SetSkip(int64(p.Offset)).
		SetLimit(int64(p.Limit))
	cur, err := s.memes.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	memes := []model.Meme{}
	if err := cur.All(ctx, &memes); err != nil {
		return nil, err
	}
	for i := range memes {
		normalizeDecoded(&memes[i])
	}
	return memes, nil
}

func mongoSort(sortBy model.SortBy) bson.D {
	recent := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	switch sortBy {
	case model.SortPopular:
		return append(bson.D{{Key: "editedByUsers", Value: -1}}, recent...)
	case model.SortFeatured:
		return append(bson.D{{Key: "isFeatured", Value: -1}}, recent...)
	default:
		return recent
	}
}

func (s *MongoStore) Create(ctx context.Context, p CreateParams) (*model.Meme, error) {
	now := model.Now()
	m := model.Meme{
		ID:          s.ids.newID(now),
		Title:       p.Title,
		Tags:        append([]string{}, p.Tags...),
		ImageURL:    p.ImageURL,
		CreatedAt:   now,
		EditHistory: []model.EditHistoryEntry{},
	}
	if _, err := s.memes.InsertOne(ctx, m); err != nil {
		return nil, fmt.Errorf("insert meme: %w", err)
	}
	return &m, nil
}

func (s *MongoStore) CreateBulk(ctx context.Context, items []CreateParams) ([]model.Meme, error) {
	out := make([]model.Meme, 0, len(items))
	for _, p := range items {
		m, err := s.Create(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, p UpdateParams) (*model.Meme, error) {
	set := bson.D{}
	if p.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *p.Title})
	}
	if p.Tags != nil {
		set = append(set, bson.E{Key: "tags", Value: p.Tags})
	}
	if p.ImageURL != nil {
		set = append(set, bson.E{Key: "imageUrl", Value: *p.ImageURL})
	}
	if p.IsLocked != nil {
		set = append(set, bson.E{Key: "isLocked", Value: *p.IsLocked})
	}
	if p.IsFeatured != nil {
		set = append(set, bson.E{Key: "isFeatured", Value: *p.IsFeatured})
	}
	if len(set) == 0 {
		return s.Get(ctx, id)
	}

	var m model.Meme
	err := s.memes.FindOneAndUpdate(ctx, byID(id), bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update meme: %w", err)
	}
	normalizeDecoded(&m)
	return &m, nil
}

// ApplyEdit runs as one pipeline update: the history entry is built from the
// document's own pre-update title and tags, in the same write that bumps the
// counter, so the two can never diverge.
func (s *MongoStore) ApplyEdit(ctx context.Context, id, title string, tags []string) (*model.Meme, error) {
	now := model.Now()
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "editHistory", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$editHistory", bson.A{}}}},
				bson.A{bson.D{
					{Key: "previousName", Value: "$title"},
					{Key: "previousTags", Value: "$tags"},
					{Key: "editedAt", Value: now},
				}},
			}}}},
			{Key: "title", Value: bson.D{{Key: "$literal", Value: title}}},
			{Key: "tags", Value: bson.D{{Key: "$literal", Value: nonNil(tags)}}},
			{Key: "editedByUsers", Value: bson.D{{Key: "$add", Value: bson.A{"$editedByUsers", 1}}}},
			{Key: "lastEditedAt", Value: now},
		}}},
	}
	// Documents written without isLocked count as unlocked.
	filter := bson.D{{Key: "_id", Value: id}, {Key: "isLocked", Value: bson.D{{Key: "$ne", Value: true}}}}

	var m model.Meme
	err := s.memes.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either missing or locked; tell them apart without mutating.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("meme %s: %w", id, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("apply edit: %w", err)
	}
	normalizeDecoded(&m)
	return &m, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.memes.DeleteOne(ctx, byID(id))
	if err != nil {
		return false, fmt.Errorf("delete meme: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) Stats(ctx context.Context) (*Stats, error) {
	cond := func(field string) bson.D {
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$" + field, 1, 0}}}}}
	}
	cur, err := s.memes.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "locked", Value: cond("isLocked")},
			{Key: "featured", Value: cond("isFeatured")},
			{Key: "edits", Value: bson.D{{Key: "$sum", Value: "$editedByUsers"}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Total    int `bson:"total"`
		Locked   int `bson:"locked"`
		Featured int `bson:"featured"`
		Edits    int `bson:"edits"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	st := &Stats{}
	if len(rows) > 0 {
		st.Total, st.Locked, st.Featured, st.Edits = rows[0].Total, rows[0].Locked, rows[0].Featured, rows[0].Edits
	}
	return st, nil
}

func (s *MongoStore) CreateAdmin(ctx context.Context, a model.Admin) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = model.Now()
	}
	_, err := s.admins.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("admin %s: %w", a.Username, ErrAdminExists)
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (s *MongoStore) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	err := s.admins.FindOne(ctx, byID(username)).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("admin %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// normalizeDecoded gives decoded documents the same empty-slice and UTC
// shape the other backends return.
func normalizeDecoded(m *model.Meme) {
	m.Tags = nonNil(m.Tags)
	m.CreatedAt = m.CreatedAt.UTC()
	if m.LastEditedAt != nil {
		t := m.LastEditedAt.UTC()
		m.LastEditedAt = &t
	}
	if m.EditHistory == nil {
		m.EditHistory = []model.EditHistoryEntry{}
	}
	for i := range m.EditHistory {
		m.EditHistory[i].PreviousTags = nonNil(m.EditHistory[i].PreviousTags)
		m.EditHistory[i].EditedAt = m.EditHistory[i].EditedAt.UTC()
	}
}

var _ Store = (*MongoStore)(nil)
