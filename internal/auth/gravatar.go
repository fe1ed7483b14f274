package auth

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// gravatarURL はメールアドレスからGravatarのアバターURLを生成する。
// 新規ユーザーのデフォルトアバターに使う。
func gravatarURL(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := md5.Sum([]byte(normalized))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:])
}
