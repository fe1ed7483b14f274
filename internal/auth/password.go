package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword は平文パスワードのbcryptハッシュを生成する。
// 出力は呼び出しごとに異なる（ソルト込み）が、VerifyPasswordで検証できる。
// bcrypt仕様により72バイトを超える入力は切り詰められる。上限チェックは
// 入力検証層の責務であり、ここでは暗黙に処理しない。
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword は平文パスワードがハッシュと一致するかを返す。
// ハッシュが不正な形式でもエラーにせずfalseを返す。
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
