package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	ProfileImage        string     `gorm:"default:''"`
	Name                string     `gorm:"default:''"`
	Email               string     `gorm:"unique;not null"`
	Role                string     `gorm:"default:'STUDENT'"` // STUDENT, INSTRUCTOR, ADMIN
	Password            string     `gorm:"not null"`
	IsEmailVerified     bool       `gorm:"default:false"`
	LastLogin           time.Time  `gorm:"default:NULL"`
	CustomerID          string     `json:"customer_id" gorm:"index"` // payment gateway customer id
	SubscriptionID      string     `json:"subscription_id" gorm:"index"`
	SubscriptionPlan    string     `json:"subscription_plan"`
	SubscriptionStatus  string     `json:"subscription_status" gorm:"default:''"` // ACTIVE, EXPIRED, CANCELED
	SubscriptionEndsAt  *time.Time `json:"subscription_ends_at"`
	FailedLoginAttempts int        `gorm:"default:0"`
	IsBlocked           bool       `gorm:"default:false"`
	IsDeleted           bool       `gorm:"default:false"`
}
