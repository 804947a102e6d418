package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
	"github.com/ecommerce-app/ecommerce-api/internal/core/ports"
)

const usersCollection = "users"

// UserRepository stores users and their refresh session in a single
// document. The session token and its expiry are always written together.
type UserRepository struct {
	coll *mongo.Collection
}

var (
	_ ports.UserRepository = (*UserRepository)(nil)
	_ ports.SessionStore   = (*UserRepository)(nil)
)

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type mongoUser struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty"`
	Username               string             `bson:"username"`
	Email                  string             `bson:"email"`
	PasswordHash           string             `bson:"password_hash"`
	Role                   string             `bson:"role"`
	RefreshToken           *string            `bson:"refresh_token,omitempty"`
	RefreshTokenExpiryTime *time.Time         `bson:"refresh_token_expiry_time,omitempty"`
	CreatedAt              int64              `bson:"created_at"`
	UpdatedAt              int64              `bson:"updated_at"`
}

// EnsureIndexes creates the unique email index and the refresh token lookup
// index. Safe to call on every start.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "refresh_token", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_refresh_token"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	doc := mongoUser{
		ID:           primitive.NewObjectID(),
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    now.Unix(),
		UpdatedAt:    now.Unix(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) ReplaceSession(ctx context.Context, userID string, session domain.RefreshSession) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": sessionFields(session)})
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RotateSession swaps the session only if the stored token is still oldToken
// and has not expired at now. The filter and update run as one document
// operation, so concurrent rotations of the same token have one winner.
func (r *UserRepository) RotateSession(ctx context.Context, userID, oldToken string, next domain.RefreshSession, now time.Time) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrSessionConflict
	}

	filter := bson.M{
		"_id":                       oid,
		"refresh_token":             oldToken,
		"refresh_token_expiry_time": bson.M{"$gt": now.UTC()},
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": sessionFields(next)})
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSessionConflict
	}
	return nil
}

func (r *UserRepository) RevokeSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUserNotFound
	}

	var mu mongoUser
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"refresh_token": token}, clearSessionUpdate()).Decode(&mu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("revoke session: %w", err)
	}
	return mu.ID.Hex(), nil
}

func (r *UserRepository) ClearSession(ctx context.Context, userID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, clearSessionUpdate())
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func sessionFields(s domain.RefreshSession) bson.M {
	return bson.M{
		"refresh_token":             s.Token,
		"refresh_token_expiry_time": s.ExpiresAt.UTC(),
		"updated_at":                time.Now().UTC().Unix(),
	}
}

func clearSessionUpdate() bson.M {
	return bson.M{
		"$unset": bson.M{"refresh_token": "", "refresh_token_expiry_time": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC().Unix()},
	}
}

func (mu mongoUser) toDomain() *domain.User {
	u := &domain.User{
		ID:           mu.ID.Hex(),
		Username:     mu.Username,
		Email:        mu.Email,
		PasswordHash: mu.PasswordHash,
		Role:         mu.Role,
		CreatedAt:    unixToTime(mu.CreatedAt),
		UpdatedAt:    unixToTime(mu.UpdatedAt),
	}
	// A half-written session is treated as no session.
	if mu.RefreshToken != nil && mu.RefreshTokenExpiryTime != nil {
		u.Session = &domain.RefreshSession{
			Token:     *mu.RefreshToken,
			ExpiresAt: mu.RefreshTokenExpiryTime.UTC(),
		}
	}
	return u
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
