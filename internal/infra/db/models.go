package db

import (
	"time"

	"gorm.io/gorm"
)

type alertModel struct {
	ID          uint   `gorm:"primaryKey"`
	Owner       int64  `gorm:"index:idx_alerts_owner;not null"`
	Symbol      string `gorm:"not null"`
	Kind        string `gorm:"not null"`
	Params      string `gorm:"type:text;not null"`
	Active      bool   `gorm:"index:idx_alerts_active;not null"`
	TriggeredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (alertModel) TableName() string { return "alerts" }

type conversationModel struct {
	SessionID     int64  `gorm:"primaryKey;autoIncrement:false"`
	Kind          string `gorm:"not null"`
	Step          string `gorm:"not null"`
	Symbol        string
	TargetPrice   *string
	Condition     string
	Differential  *string
	Sources       string
	TokenA        string
	TokenB        string
	ExpectedRatio *string
	TouchedAt     time.Time `gorm:"index;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (conversationModel) TableName() string { return "user_states" }
