package models

import "time"

// SpinRecord is one issued coupon. Email holds the normalized address and is
// unique across the table; rows are inserted once and never updated.
type SpinRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	Email      string    `gorm:"uniqueIndex;not null;size:320" json:"email"`
	Domain     string    `json:"domain"`
	Discount   int       `json:"discount"`
	CouponCode string    `gorm:"column:coupon_code" json:"couponCode"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (SpinRecord) TableName() string {
	return "spins"
}
