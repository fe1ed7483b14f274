package auth

import (
	"errors"

	"github.com/hitoshi/photoshare/internal/model"
)

// 認証・認可の定義済みエラー。
// ハンドラ層はこれらをHTTPステータスに変換する。
var (
	// ErrInvalidToken は署名不正・形式不正・失効済みトークンを表す。
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken は有効期限切れトークンを表す。
	ErrExpiredToken = errors.New("token has expired")

	// ErrInvalidScope は署名は正しいがスコープが用途に合わないトークンを表す。
	ErrInvalidScope = errors.New("invalid scope for token")

	// ErrUnauthorized はセッション解決が最終的に失敗したことを表す。
	// 原因（失効・不正・ユーザー不在）はHTTP境界では区別しない。
	ErrUnauthorized = errors.New("could not validate credentials")

	// ErrForbidden はロールが操作を許可されていないことを表す。
	ErrForbidden = errors.New("operation forbidden")
)

// AccountStateError はアカウント状態がフローの前提を満たさない場合のエラー。
// Codeはmodelパッケージのエラーコード、Messageはクライアント向け文言。
type AccountStateError struct {
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *AccountStateError) Error() string {
	return e.Message
}

// ログイン・サインアップの状態エラーを生成するヘルパー群。
// Messageの文言はクライアント互換性があるため変更しないこと。

func errAccountExists() *AccountStateError {
	return &AccountStateError{Code: model.ErrCodeAccountExists, Message: "The account already exists"}
}

func errInvalidEmail() *AccountStateError {
	return &AccountStateError{Code: model.ErrCodeInvalidEmail, Message: "Invalid email"}
}

func errEmailNotConfirmed() *AccountStateError {
	return &AccountStateError{Code: model.ErrCodeEmailNotConfirmed, Message: "The email is not confirmed"}
}

func errPasswordResetPending() *AccountStateError {
	return &AccountStateError{Code: model.ErrCodePasswordNotSet, Message: "Password reset is not confirmed"}
}

func errAccountInactive() *AccountStateError {
	return &AccountStateError{Code: model.ErrCodeAccountInactive, Message: "The account is inactive"}
}

func errInvalidPassword() *AccountStateError {
	return &AccountStateError{Code: model.ErrCodeInvalidPassword, Message: "Invalid password"}
}

func errPasswordResetNotRequested() *AccountStateError {
	return &AccountStateError{Code: model.ErrCodePasswordNotSet, Message: "Password reset is not requested"}
}
