package model

import "time"

// Contact はユーザーが所有する連絡先を表す。
// EmailとPhoneは同一ユーザー内で一意（DB制約 uix_email / uix_phone）。
type Contact struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthday  time.Time // 日付のみ意味を持つ（時刻部分は無視する）
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName は姓と名を連結した表示名を返す。
func (c *Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}
