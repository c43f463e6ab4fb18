package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	mongoEmailIndex = "email_unique"
	mongoCodeIndex  = "verification_token_unique"
	mongoResetIndex = "reset_password_token"
	mongoSweepIndex = "unverified_expiry"
)

type mongoUser struct {
	ID                         bson.ObjectID `bson:"_id"`
	Email                      string        `bson:"email"`
	Name                       string        `bson:"name"`
	Password                   string        `bson:"password"`
	IsVerified                 bool          `bson:"isVerified"`
	VerificationToken          string        `bson:"verificationToken,omitempty"`
	VerificationTokenExpiresAt time.Time     `bson:"verificationTokenExpiresAt,omitempty"`
	ResetPasswordToken         string        `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpiresAt     time.Time     `bson:"resetPasswordExpiresAt,omitempty"`
	LastLogin                  time.Time     `bson:"lastLogin,omitempty"`
	CreatedAt                  time.Time     `bson:"createdAt"`
	UpdatedAt                  time.Time     `bson:"updatedAt"`
}

func (d *mongoUser) user() *authflow.User {
	return &authflow.User{
		ID:                         d.ID.Hex(),
		Email:                      d.Email,
		Name:                       d.Name,
		PasswordHash:               d.Password,
		IsVerified:                 d.IsVerified,
		VerificationToken:          d.VerificationToken,
		VerificationTokenExpiresAt: utc(d.VerificationTokenExpiresAt),
		ResetPasswordToken:         d.ResetPasswordToken,
		ResetPasswordExpiresAt:     utc(d.ResetPasswordExpiresAt),
		LastLogin:                  utc(d.LastLogin),
		CreatedAt:                  utc(d.CreatedAt),
		UpdatedAt:                  utc(d.UpdatedAt),
	}
}

// Mongo is an [authflow.UserStore] over a single "users" collection. Email
// and verification code uniqueness are enforced by the indexes created in
// [Mongo.EnsureIndexes].
type Mongo struct {
	coll *mongo.Collection
}

// NewMongo returns a store bound to db.users.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection("users")}
}

var _ authflow.UserStore = (*Mongo)(nil)

// EnsureIndexes creates the unique and lookup indexes. It is idempotent.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(mongoEmailIndex).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "verificationToken", Value: 1}},
			Options: options.Index().SetName(mongoCodeIndex).SetUnique(true).
				SetPartialFilterExpression(bson.M{"verificationToken": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().SetName(mongoResetIndex).
				SetPartialFilterExpression(bson.M{"resetPasswordToken": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "isVerified", Value: 1}, {Key: "verificationTokenExpiresAt", Value: 1}},
			Options: options.Index().SetName(mongoSweepIndex),
		},
	})
	if err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").With("operation", "create mongo indexes").Wrap(err)
	}
	return nil
}

// CreateUser assigns user.ID and inserts the document.
func (s *Mongo) CreateUser(ctx context.Context, user *authflow.User) error {
	doc := mongoUser{
		ID:                         bson.NewObjectID(),
		Email:                      user.Email,
		Name:                       user.Name,
		Password:                   user.PasswordHash,
		IsVerified:                 user.IsVerified,
		VerificationToken:          user.VerificationToken,
		VerificationTokenExpiresAt: user.VerificationTokenExpiresAt,
		ResetPasswordToken:         user.ResetPasswordToken,
		ResetPasswordExpiresAt:     user.ResetPasswordExpiresAt,
		LastLogin:                  user.LastLogin,
		CreatedAt:                  user.CreatedAt,
		UpdatedAt:                  user.UpdatedAt,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), mongoCodeIndex) {
				return authflow.ErrDuplicateCode
			}
			return oops.With("email", user.Email).Wrap(authflow.ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").With("operation", "insert user").Wrap(err)
	}

	user.ID = doc.ID.Hex()
	return nil
}

// GetUserByEmail finds one user by normalized email.
func (s *Mongo) GetUserByEmail(ctx context.Context, email string) (*authflow.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, "find user by email")
}

// GetUserByID finds one user by hex object id. A malformed id matches nothing.
func (s *Mongo) GetUserByID(ctx context.Context, id string) (*authflow.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound(id)
	}
	return s.findOne(ctx, bson.M{"_id": oid}, "find user by id")
}

func (s *Mongo) findOne(ctx context.Context, filter bson.M, operation string) (*authflow.User, error) {
	var doc mongoUser
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.With("operation", operation).Wrap(authflow.ErrRecordNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").With("operation", operation).Wrap(err)
	}
	return doc.user(), nil
}

// ListUsers returns every user ordered by creation time.
func (s *Mongo) ListUsers(ctx context.Context) ([]*authflow.User, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "find users").Wrap(err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "decode users").Wrap(err)
	}
	users := make([]*authflow.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].user())
	}
	return users, nil
}

// UpdateLastLogin stamps lastLogin and updatedAt.
func (s *Mongo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{"lastLogin": at, "updatedAt": at}}, "update last login")
}

// SetResetToken stores a reset token on the user.
func (s *Mongo) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": expiresAt,
	}}, "set reset token")
}

func (s *Mongo) updateByID(ctx context.Context, id string, update bson.M, operation string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", operation).With("user_id", id).Wrap(err)
	}
	if res.MatchedCount == 0 {
		return notFound(id)
	}
	return nil
}

// ConsumeVerificationToken verifies the owner of a live code in one
// findOneAndUpdate.
func (s *Mongo) ConsumeVerificationToken(ctx context.Context, code string, now time.Time) (*authflow.User, error) {
	if code == "" {
		return nil, authflow.ErrRecordNotFound
	}
	return s.consume(ctx,
		bson.M{"verificationToken": code, "verificationTokenExpiresAt": bson.M{"$gt": now}},
		bson.M{
			"$set":   bson.M{"isVerified": true, "updatedAt": now},
			"$unset": bson.M{"verificationToken": "", "verificationTokenExpiresAt": ""},
		},
		"consume verification token",
	)
}

// ConsumeResetToken sets a new password for the owner of a live token.
func (s *Mongo) ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (*authflow.User, error) {
	if token == "" {
		return nil, authflow.ErrRecordNotFound
	}
	return s.consume(ctx,
		bson.M{"resetPasswordToken": token, "resetPasswordExpiresAt": bson.M{"$gt": now}},
		bson.M{
			"$set":   bson.M{"password": newPasswordHash, "updatedAt": now},
			"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpiresAt": ""},
		},
		"consume reset token",
	)
}

func (s *Mongo) consume(ctx context.Context, filter, update bson.M, operation string) (*authflow.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoUser
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, authflow.ErrRecordNotFound
	}
	if err != nil {
		return nil, oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	return doc.user(), nil
}

// DeleteUnverifiedExpired removes unverified users whose code expired
// before now.
func (s *Mongo) DeleteUnverifiedExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{
		"isVerified":                 false,
		"verificationTokenExpiresAt": bson.M{"$lt": now},
	})
	if err != nil {
		return 0, oops.Code("USER_SWEEP_FAILED").With("operation", "delete unverified users").Wrap(err)
	}
	return res.DeletedCount, nil
}

// Ping checks the primary.
func (s *Mongo) Ping(ctx context.Context) error {
	if err := s.coll.Database().Client().Ping(ctx, nil); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("operation", "ping mongo").Wrap(err)
	}
	return nil
}
