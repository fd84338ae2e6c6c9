package ratelimit

import "time"

type RateLimit struct {
	ID           int64     `gorm:"primaryKey"`
	Identifier   string    `gorm:"column:identifier;not null;uniqueIndex:idx_rate_limits_key"`
	Endpoint     string    `gorm:"column:endpoint;not null;uniqueIndex:idx_rate_limits_key"`
	AttemptCount int       `gorm:"column:attempt_count;not null;default:1"`
	WindowStart  time.Time `gorm:"column:window_start;not null;index"`
}

func (RateLimit) TableName() string {
	return "rate_limits"
}
