// Package auth はトークン発行・検証、パスワードハッシュ、
// トークン失効リスト、セッション解決を提供する。
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope はトークンの用途を表すタグ。
// スコープの合わないトークンは署名が正しくても拒否される。
type Scope string

const (
	// ScopeAccess はAPIアクセス用の短命トークン。
	ScopeAccess Scope = "access_token"
	// ScopeRefresh はアクセストークン再発行用トークン。
	ScopeRefresh Scope = "refresh_token"
	// ScopeEmailVerification はメールアドレス確認用トークン。
	ScopeEmailVerification Scope = "email_verification_token"
	// ScopePasswordReset はパスワードリセット申請用トークン。
	ScopePasswordReset Scope = "password_reset_token"
	// ScopePasswordSet は新パスワード設定用の短命トークン。
	ScopePasswordSet Scope = "password_set_token"
)

// スコープごとのデフォルト有効期間。
const (
	defaultAccessTTL            = 15 * time.Minute
	defaultRefreshTTL           = 7 * 24 * time.Hour
	defaultEmailVerificationTTL = 7 * 24 * time.Hour
	defaultPasswordResetTTL     = 7 * 24 * time.Hour
	defaultPasswordSetTTL       = 15 * time.Minute
)

// DefaultTTL はスコープのデフォルト有効期間を返す。
func DefaultTTL(scope Scope) time.Duration {
	switch scope {
	case ScopeRefresh:
		return defaultRefreshTTL
	case ScopeEmailVerification:
		return defaultEmailVerificationTTL
	case ScopePasswordReset:
		return defaultPasswordResetTTL
	case ScopePasswordSet:
		return defaultPasswordSetTTL
	default:
		return defaultAccessTTL
	}
}

// NewSecret は署名用シークレットを暗号論的乱数から生成する。
// プロセス起動時に一度だけ生成する。再起動でシークレットが変わると
// 発行済みの全トークンが無効になるが、これは意図した動作。
func NewSecret(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("secret length must be positive: %d", length)
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	return b, nil
}

// tokenClaims はJWT標準クレームにスコープを加えたもの。
type tokenClaims struct {
	jwt.RegisteredClaims
	Scope Scope `json:"scope"`
}

// Codec はトークンの発行と検証を行う。
// ステートレスで、複数goroutineから同時に呼び出してよい。
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec はCodecを生成する。
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// SetClock は現在時刻の取得関数を差し替える。有効期限テスト用。
func (c *Codec) SetClock(now func() time.Time) {
	c.now = now
}

// Issue はsubject（メールアドレス）とスコープを埋め込んだ署名済みトークンを発行する。
// ttlは与えられた値をそのまま使う。期限切れトークンを作るため負の値も許容する。
// jtiを持たせ、同一クレームのトークンが同一文字列にならないようにする
// （失効リストは生のトークン文字列をキーにするため）。
func (c *Codec) Issue(subject string, scope Scope, ttl time.Duration) (string, error) {
	now := c.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Scope: scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueDefault はスコープのデフォルト有効期間でトークンを発行する。
func (c *Codec) IssueDefault(subject string, scope Scope) (string, error) {
	return c.Issue(subject, scope, DefaultTTL(scope))
}

// Decode はトークンを検証しsubjectを返す。
// 署名不正・形式不正はErrInvalidToken、期限切れはErrExpiredToken、
// スコープ不一致はErrInvalidScopeを返す。期限切れはスコープ検査より優先される。
func (c *Codec) Decode(token string, expected Scope) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Scope != expected {
		return "", ErrInvalidScope
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// ExpiryOf はトークンの有効期限を返す。署名は検証するが期限切れは許容する。
// 失効リストが残存期間を計算するために使う。
func (c *Codec) ExpiryOf(token string) (time.Time, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(token, &tokenClaims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return time.Time{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, ErrInvalidToken
	}
	return claims.ExpiresAt.Time, nil
}
