package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "userdirectory/internal/errors"
	"userdirectory/internal/model"
)

// UsersCollection is the MongoDB collection holding user documents.
const UsersCollection = "users"

// userDocument is the stored shape of a user in MongoDB.
type userDocument struct {
	ID        string    `bson:"_id"`
	FirstName string    `bson:"firstName"`
	LastName  string    `bson:"lastName"`
	Email     string    `bson:"email"`
	Username  string    `bson:"username"`
	Password  string    `bson:"password"`
	Website   string    `bson:"website,omitempty"`
	Created   time.Time `bson:"created"`
}

func toDocument(u *model.User) userDocument {
	return userDocument{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Username:  u.Username,
		Password:  u.Password,
		Website:   u.Website,
		Created:   u.Created,
	}
}

func (d userDocument) toModel() (*model.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", d.ID, err)
	}
	return &model.User{
		ID:        id,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Username:  d.Username,
		Password:  d.Password,
		Website:   model.NormalizeWebsite(d.Website),
		Created:   d.Created,
	}, nil
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository builds a repository over the users collection of db.
// Call EnsureUserIndexes once at start-up so username uniqueness is enforced.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(UsersCollection)}
}

// EnsureUserIndexes creates the unique username index and the email lookup index.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	user.ApplyDefaults(time.Now())
	user.Normalize()

	if _, err := r.coll.InsertOne(ctx, toDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *model.User) error {
	user.Normalize()

	doc := toDocument(user)
	set := bson.D{
		{Key: "firstName", Value: doc.FirstName},
		{Key: "lastName", Value: doc.LastName},
		{Key: "email", Value: doc.Email},
		{Key: "username", Value: doc.Username},
		{Key: "password", Value: doc.Password},
		{Key: "website", Value: doc.Website},
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created", Value: 1}})
	return r.find(ctx, bson.M{"email": email}, opts)
}

func (r *mongoUserRepository) List(ctx context.Context, offset, limit int) ([]model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created", Value: 1}, {Key: "username", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.D{}, opts)
}

func (r *mongoUserRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter interface{}) (*model.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel()
}

func (r *mongoUserRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]model.User, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		u, err := d.toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}
