package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

const (
	collectionAccounts = "accounts"
	collectionCounters = "counters"
	accountsCounterID  = "accounts"
)

// AccountRepository stores accounts in MongoDB. Case-insensitive uniqueness
// is enforced by unique indexes on lower-cased companion fields.
type AccountRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{
		col:      db.Collection(collectionAccounts),
		counters: db.Collection(collectionCounters),
	}
}

type accountDoc struct {
	ID                  int64      `bson:"_id"`
	UserID              string     `bson:"user_id,omitempty"`
	UserIDCI            string     `bson:"user_id_ci,omitempty"`
	Email               string     `bson:"email"`
	EmailCI             string     `bson:"email_ci"`
	EmailLocalCI        string     `bson:"email_local_ci"`
	FirstName           string     `bson:"first_name,omitempty"`
	LastName            string     `bson:"last_name,omitempty"`
	PasswordHash        string     `bson:"password_hash"`
	MustChangePassword  bool       `bson:"must_change_password"`
	Role                string     `bson:"role"`
	Status              string     `bson:"status"`
	LastLoginAt         *time.Time `bson:"last_login_at,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
	CreatedByID         *int64     `bson:"created_by_id,omitempty"`
	PasswordResetToken  string     `bson:"password_reset_token,omitempty"`
	PasswordResetExpiry *time.Time `bson:"password_reset_expiry,omitempty"`
}

func toDoc(a *domain.Account) accountDoc {
	email := strings.TrimSpace(a.Email)
	return accountDoc{
		ID:                  a.ID,
		UserID:              a.UserID,
		UserIDCI:            strings.ToLower(a.UserID),
		Email:               email,
		EmailCI:             domain.NormalizeEmail(email),
		EmailLocalCI:        strings.ToLower(domain.EmailLocalPart(email)),
		FirstName:           a.FirstName,
		LastName:            a.LastName,
		PasswordHash:        a.PasswordHash,
		MustChangePassword:  a.MustChangePassword,
		Role:                string(a.Role),
		Status:              string(a.Status),
		LastLoginAt:         a.LastLoginAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
		CreatedByID:         a.CreatedByID,
		PasswordResetToken:  a.PasswordResetToken,
		PasswordResetExpiry: a.PasswordResetExpiry,
	}
}

func (d *accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		ID:                  d.ID,
		UserID:              d.UserID,
		Email:               d.Email,
		FirstName:           d.FirstName,
		LastName:            d.LastName,
		PasswordHash:        d.PasswordHash,
		MustChangePassword:  d.MustChangePassword,
		Role:                domain.Role(d.Role),
		Status:              domain.Status(d.Status),
		LastLoginAt:         utcPtr(d.LastLoginAt),
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
		CreatedByID:         d.CreatedByID,
		PasswordResetToken:  d.PasswordResetToken,
		PasswordResetExpiry: utcPtr(d.PasswordResetExpiry),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Create allocates the next numeric ID and inserts the account.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	doc := toDoc(a)
	doc.ID = id
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": accountsCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate account id: %w", err)
	}
	return counter.Seq, nil
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDoc
	if err := r.col.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email_ci": domain.NormalizeEmail(email)})
}

func (r *AccountRepository) FindByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	key := strings.ToLower(strings.TrimSpace(userID))
	if key == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"user_id_ci": key})
}

func (r *AccountRepository) FindFirstByRole(ctx context.Context, role domain.Role) (*domain.Account, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.findOne(ctx, bson.M{"role": string(role)}, opts)
}

func (r *AccountRepository) FindByEmailLocalPart(ctx context.Context, localPart string, limit int) ([]*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	key := strings.ToLower(strings.TrimSpace(localPart))
	if key == "" {
		return nil, nil
	}
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"email_local_ci": key}, opts)
	if err != nil {
		return nil, fmt.Errorf("find by local part: %w", err)
	}
	return decodeAll(ctx, cur)
}

// List returns a page of accounts matching filter, newest first.
func (r *AccountRepository) List(ctx context.Context, f ports.ListAccountsFilter) ([]*domain.Account, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"user_id": pattern},
			bson.M{"email": pattern},
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
		}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	items, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]*domain.Account, error) {
	defer cur.Close(ctx)

	var out []*domain.Account
	for cur.Next(ctx) {
		var doc accountDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (r *AccountRepository) updateByID(ctx context.Context, id int64, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"last_login_at": at}})
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, hash string, mustChange bool, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash":        hash,
		"must_change_password": mustChange,
		"updated_at":           at,
	}})
}

func (r *AccountRepository) SetStatus(ctx context.Context, id int64, status domain.Status, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"status": string(status), "updated_at": at}})
}

func (r *AccountRepository) SetResetToken(ctx context.Context, id int64, digest string, expiry time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"password_reset_token":  digest,
		"password_reset_expiry": expiry,
	}})
}

func (r *AccountRepository) FindByResetToken(ctx context.Context, digest string) (*domain.Account, error) {
	if digest == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"password_reset_token": digest})
}

// ConsumeResetToken applies the new hash only while the token is still
// stored and unexpired, so concurrent resets with one token succeed at most once.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, id int64, digest, hash string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":                   id,
		"password_reset_token":  digest,
		"password_reset_expiry": bson.M{"$gt": at},
	}
	update := bson.M{
		"$set": bson.M{
			"password_hash":        hash,
			"must_change_password": false,
			"updated_at":           at,
		},
		"$unset": bson.M{"password_reset_token": "", "password_reset_expiry": ""},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInvalidResetToken
	}
	return nil
}

// CountStats groups accounts by role and status in a single aggregation.
func (r *AccountRepository) CountStats(ctx context.Context) (*domain.AccountStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "role", Value: "$role"}, {Key: "status", Value: "$status"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "pending", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{"$must_change_password", 1, 0}},
			}}}},
		}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID struct {
			Role   string `bson:"role"`
			Status string `bson:"status"`
		} `bson:"_id"`
		Count   int64 `bson:"count"`
		Pending int64 `bson:"pending"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}

	stats := &domain.AccountStats{UsersByRole: []domain.RoleCount{}}
	byRole := make(map[domain.Role]int64)
	for _, row := range rows {
		stats.PendingPasswordChange += row.Pending
		switch domain.Status(row.ID.Status) {
		case domain.StatusActive:
			stats.TotalUsers += row.Count
		case domain.StatusInactive:
			stats.InactiveUsers += row.Count
		}
		byRole[domain.Role(row.ID.Role)] += row.Count
	}
	for _, role := range domain.Roles() {
		if n := byRole[role]; n > 0 {
			stats.UsersByRole = append(stats.UsersByRole, domain.RoleCount{Role: role, Count: n})
		}
	}
	return stats, nil
}

// EnsureIndexes creates the uniqueness and lookup indexes on the accounts collection.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stringField := func(field string) bson.M {
		return bson.M{field: bson.M{"$type": "string"}}
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email_ci", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys:    bson.D{{Key: "user_id_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(stringField("user_id_ci")),
		},
		{Keys: bson.D{{Key: "email_local_ci", Value: 1}}},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(stringField("password_reset_token")),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
