// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleAdministrator は全操作が許可される管理者ロール。
	RoleAdministrator Role = "administrator"
	// RoleModerator はコメント・評価のモデレーションが許可されるロール。
	RoleModerator Role = "moderator"
	// RoleUser は一般ユーザーロール。
	RoleUser Role = "user"
)

// ValidRole はロール文字列が定義済みロールかどうかを返す。
func ValidRole(r Role) bool {
	switch r {
	case RoleAdministrator, RoleModerator, RoleUser:
		return true
	}
	return false
}

// User はサービス利用ユーザーを表す。
// Passwordはbcryptハッシュを保持する（平文は保持しない）。
// IsEmailConfirmedとIsPasswordValidの組み合わせがアカウント状態を決める:
// (false, true) = 登録直後・メール未確認、(true, true) = 通常、
// (true, false) = パスワードリセット申請中。
type User struct {
	ID               string
	Username         string
	Email            string
	Password         string
	Avatar           string
	Role             Role
	RefreshToken     string
	IsEmailConfirmed bool
	IsPasswordValid  bool
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
