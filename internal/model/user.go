package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Username  string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"size:100;not null" json:"-"`
	FirstName string     `gorm:"size:150" json:"firstName"`
	LastName  string     `gorm:"size:150" json:"lastName"`
	Role      UserRole   `gorm:"size:20;default:'student'" json:"role"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin"`
	LastSeen  *time.Time `json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}

// UserProfile 保存一次性验证码，用于注册验证和重置密码
type UserProfile struct {
	BaseModel
	UserID    uint       `gorm:"uniqueIndex;not null" json:"userId"`
	OTP       *string    `gorm:"size:6" json:"-"`
	OTPExpiry *time.Time `json:"-"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
