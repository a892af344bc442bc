package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost       = 12
	maxLoginAttempts = 5
	lockDuration     = 15 * time.Minute
	resetTokenTTL    = 15 * time.Minute
	queryTimeout     = 5 * time.Second
)

type UserRepository struct {
	Collection *mongo.Collection
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// ProfileUpdate holds optional profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *UserRepository) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *UserRepository) Insert(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           primitive.NewObjectID(),
		Email:        NormalizeEmail(email),
		PasswordHash: string(hashedPassword),
		Role:         role,
		Addresses:    []models.Address{},
		SavedCards:   []models.Card{},
		CreatedAt:    m.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = m.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("%w: email %s is already registered", models.ErrDuplicate, user.Email)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials. Five consecutive failures lock the
// account for fifteen minutes; a success clears the counter.
func (m *UserRepository) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	err := m.Collection.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	now := m.now()
	if user.Locked(now) {
		return nil, models.ErrAccountLocked
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, err
		}
		update := bson.M{"$inc": bson.M{"login_attempts": 1}}
		if user.LoginAttempts+1 >= maxLoginAttempts {
			update = bson.M{
				"$set": bson.M{"login_attempts": 0, "lock_until": now.Add(lockDuration).UTC()},
			}
		}
		if _, uerr := m.Collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update); uerr != nil {
			return nil, uerr
		}
		return nil, models.ErrInvalidCredentials
	}

	if user.LoginAttempts > 0 || user.LockUntil != nil {
		_, err = m.Collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
			"$set":   bson.M{"login_attempts": 0},
			"$unset": bson.M{"lock_until": ""},
		})
		if err != nil {
			return nil, err
		}
		user.LoginAttempts = 0
		user.LockUntil = nil
	}
	return &user, nil
}

func (m *UserRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	err := m.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *UserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, p ProfileUpdate) (*models.User, error) {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		set["phone"] = strings.TrimSpace(*p.Phone)
	}
	if len(set) == 0 {
		return m.Get(ctx, id)
	}
	return m.update(ctx, id, bson.M{"$set": set})
}

func (m *UserRepository) AddAddress(ctx context.Context, id primitive.ObjectID, content string) (*models.User, error) {
	addr := models.Address{ID: primitive.NewObjectID(), Content: strings.TrimSpace(content)}
	return m.update(ctx, id, bson.M{"$push": bson.M{"addresses": addr}})
}

func (m *UserRepository) DeleteAddress(ctx context.Context, id, addressID primitive.ObjectID) (*models.User, error) {
	return m.update(ctx, id, bson.M{"$pull": bson.M{"addresses": bson.M{"_id": addressID}}})
}

// AddCard appends a card to the wallet unless its token is already saved.
func (m *UserRepository) AddCard(ctx context.Context, id primitive.ObjectID, card models.Card) (*models.User, error) {
	if card.ID.IsZero() {
		card.ID = primitive.NewObjectID()
	}
	if card.Brand == "" {
		card.Brand = "Card"
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "saved_cards.token": bson.M{"$ne": card.Token}},
		bson.M{"$push": bson.M{"saved_cards": card}},
	)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, id)
}

func (m *UserRepository) DeleteCard(ctx context.Context, id, cardID primitive.ObjectID) (*models.User, error) {
	return m.update(ctx, id, bson.M{"$pull": bson.M{"saved_cards": bson.M{"_id": cardID}}})
}

func (m *UserRepository) update(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := m.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateResetToken stores a fresh password reset token for the account. The
// returned user is nil when no account has that email.
func (m *UserRepository) CreateResetToken(ctx context.Context, email string) (*models.User, string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", err
	}
	token := hex.EncodeToString(buf)
	expires := m.now().Add(resetTokenTTL).UTC()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := m.Collection.FindOneAndUpdate(ctx,
		bson.M{"email": NormalizeEmail(email)},
		bson.M{"$set": bson.M{"reset_password_token": token, "reset_password_expires": expires}},
		opts,
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// ResetPassword replaces the password of the account holding an unexpired
// token and clears the token.
func (m *UserRepository) ResetPassword(ctx context.Context, token, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := m.Collection.UpdateOne(ctx,
		bson.M{
			"reset_password_token":   token,
			"reset_password_expires": bson.M{"$gt": m.now().UTC()},
		},
		bson.M{
			"$set":   bson.M{"password_hash": string(hashed), "login_attempts": 0},
			"$unset": bson.M{"reset_password_token": "", "reset_password_expires": "", "lock_until": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: reset token is invalid or expired", models.ErrValidation)
	}
	return nil
}
