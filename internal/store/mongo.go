package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/storefront/backend/internal/models"
)

// AccountsCollection is the MongoDB collection holding accounts.
const AccountsCollection = "users"

// accountDocument is the stored shape of an account.
type accountDocument struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Username            string             `bson:"username"`
	Email               string             `bson:"email"`
	Password            string             `bson:"password"`
	Role                string             `bson:"role"`
	ProfileImage        string             `bson:"profileImage"`
	Phone               string             `bson:"phone"`
	Address             string             `bson:"address"`
	EmailVerified       bool               `bson:"emailVerified"`
	PasswordChangedAt   *time.Time         `bson:"passwordChangedAt,omitempty"`
	ResetPasswordToken  string             `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpire *time.Time         `bson:"resetPasswordExpire,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt"`
}

func (d *accountDocument) toModel() *models.Account {
	return &models.Account{
		ID:                     d.ID.Hex(),
		Username:               d.Username,
		Email:                  d.Email,
		PasswordHash:           d.Password,
		Role:                   models.Role(d.Role),
		ProfileImage:           d.ProfileImage,
		Phone:                  d.Phone,
		Address:                d.Address,
		EmailVerified:          d.EmailVerified,
		PasswordChangedAt:      d.PasswordChangedAt,
		ResetPasswordTokenHash: d.ResetPasswordToken,
		ResetPasswordExpiresAt: d.ResetPasswordExpire,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
}

// MongoStore handles account CRUD in MongoDB.
type MongoStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(AccountsCollection), now: time.Now}
}

// EnsureIndexes creates the unique email and username indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, a *models.Account) error {
	now := s.now().UTC()
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	doc := accountDocument{
		Username:      a.Username,
		Email:         a.Email,
		Password:      a.PasswordHash,
		Role:          string(a.Role),
		ProfileImage:  a.ProfileImage,
		Phone:         a.Phone,
		Address:       a.Address,
		EmailVerified: a.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return mongoWriteError("insert", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("mongo insert: unexpected id type %T", res.InsertedID)
	}
	a.ID = oid.Hex()
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByEmailOrUsername(ctx context.Context, email, username string) ([]models.Account, error) {
	filter := bson.M{"$or": bson.A{bson.M{"email": email}, bson.M{"username": username}}}
	cur, err := s.col.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	out := make([]models.Account, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}

func (s *MongoStore) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	update := bson.M{"$set": bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": expiresAt,
		"updatedAt":           s.now().UTC(),
	}}
	return s.updateOne(ctx, bson.M{"_id": oid}, update)
}

func (s *MongoStore) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	return s.findOne(ctx, bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": bson.M{"$gt": now},
	})
}

// ConsumeResetToken applies the new password only while the token hash is
// still stored and unexpired at c.ChangedAt, so a token can be redeemed at
// most once.
func (s *MongoStore) ConsumeResetToken(ctx context.Context, c ResetConsumption) error {
	oid, err := primitive.ObjectIDFromHex(c.AccountID)
	if err != nil {
		return ErrNotFound
	}
	filter := bson.M{
		"_id":                 oid,
		"resetPasswordToken":  c.TokenHash,
		"resetPasswordExpire": bson.M{"$gt": c.ChangedAt},
	}
	update := bson.M{
		"$set": bson.M{
			"password":          c.PasswordHash,
			"passwordChangedAt": c.ChangedAt,
			"updatedAt":         s.now().UTC(),
		},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""},
	}
	return s.updateOne(ctx, filter, update)
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.Account, error) {
	set := bson.M{"updatedAt": s.now().UTC()}
	if upd.Username != nil {
		set["username"] = *upd.Username
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}
	if upd.ProfileImage != nil {
		set["profileImage"] = *upd.ProfileImage
	}
	if upd.Role != nil {
		set["role"] = string(*upd.Role)
	}
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": set})
}

func (s *MongoStore) UpdateEmail(ctx context.Context, id, email string) (*models.Account, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{
		"email":         email,
		"emailVerified": false,
		"updatedAt":     s.now().UTC(),
	}})
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListByRole(ctx context.Context, role models.Role) ([]models.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"role": string(role)}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	out := make([]models.Account, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var doc accountDocument
	if err := s.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find one: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongoWriteError("update", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDocument
	err = s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, mongoWriteError("update", err)
	}
	return doc.toModel(), nil
}

// mongoWriteError turns unique index violations into *DuplicateError.
func mongoWriteError(op string, err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo %s: %w", op, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "index: username"):
		return &DuplicateError{Field: "username"}
	case strings.Contains(msg, "index: email"):
		return &DuplicateError{Field: "email"}
	case strings.Contains(msg, "username"):
		return &DuplicateError{Field: "username"}
	default:
		return &DuplicateError{Field: "email"}
	}
}
