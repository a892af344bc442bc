package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleDelivery  Role = "delivery"
)

type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email                string             `bson:"email" json:"email"`
	PasswordHash         string             `bson:"password_hash" json:"-"`
	Role                 Role               `bson:"role" json:"role"`
	Name                 string             `bson:"name,omitempty" json:"name"`
	Phone                string             `bson:"phone,omitempty" json:"phone"`
	Addresses            []Address          `bson:"addresses" json:"addresses"`
	SavedCards           []Card             `bson:"saved_cards" json:"savedCards"`
	LoginAttempts        int                `bson:"login_attempts" json:"-"`
	LockUntil            *time.Time         `bson:"lock_until,omitempty" json:"-"`
	ResetPasswordToken   string             `bson:"reset_password_token,omitempty" json:"-"`
	ResetPasswordExpires *time.Time         `bson:"reset_password_expires,omitempty" json:"-"`
	CreatedAt            time.Time          `bson:"created_at" json:"createdAt"`
}

type Address struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	Content string             `bson:"content" json:"content"`
}

// Card is a saved payment method. Only the brand, the last four digits and the
// processor token are ever stored.
type Card struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Brand string             `bson:"brand" json:"brand"`
	Last4 string             `bson:"last4" json:"last4"`
	Token string             `bson:"token" json:"token"`
}

// HasCardToken reports whether the token is already in the user's wallet.
func (u *User) HasCardToken(token string) bool {
	for _, c := range u.SavedCards {
		if c.Token == token {
			return true
		}
	}
	return false
}

// Locked reports whether failed logins have locked the account at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

type Category string

const (
	CategoryStarter  Category = "starter"
	CategoryMain     Category = "main"
	CategoryDessert  Category = "dessert"
	CategoryBeverage Category = "beverage"
)

var Categories = []Category{CategoryStarter, CategoryMain, CategoryDessert, CategoryBeverage}

const DefaultProductImage = "https://via.placeholder.com/150"

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Image       string             `bson:"image" json:"image"`
	Category    Category           `bson:"category" json:"category"`
	Stock       int                `bson:"stock" json:"stock"`
	IsAvailable bool               `bson:"is_available" json:"isAvailable"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

type Coupon struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code               string             `bson:"code" json:"code"`
	DiscountPercentage int                `bson:"discount_percentage" json:"discountPercentage"`
	ExpirationDate     time.Time          `bson:"expiration_date" json:"expirationDate"`
	IsActive           bool               `bson:"is_active" json:"isActive"`
}

// Usable reports whether the coupon is active and not yet expired at now.
func (c *Coupon) Usable(now time.Time) bool {
	return c.IsActive && now.Before(c.ExpirationDate)
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID primitive.ObjectID `bson:"product_id" json:"productId"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	Status    ReviewStatus       `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

type BestSeller struct {
	ProductID    primitive.ObjectID `bson:"_id" json:"productId"`
	ProductName  string             `bson:"product_name" json:"productName"`
	TotalUnits   int                `bson:"total_units" json:"totalUnits"`
	TotalRevenue float64            `bson:"total_revenue" json:"totalRevenue"`
}

type SalesReportItem struct {
	Date    time.Time   `json:"date"`
	OrderID string      `json:"orderId"`
	Total   float64     `json:"total"`
	Status  OrderStatus `json:"status"`
}
