package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	secret, err := NewSecret(64)
	if err != nil {
		t.Fatalf("NewSecret returned error: %v", err)
	}
	return NewCodec(secret)
}

func TestNewSecret(t *testing.T) {
	s1, err := NewSecret(64)
	if err != nil {
		t.Fatalf("NewSecret returned error: %v", err)
	}
	if len(s1) != 64 {
		t.Errorf("len(secret) = %d, 期待値 64", len(s1))
	}

	s2, err := NewSecret(64)
	if err != nil {
		t.Fatalf("NewSecret returned error: %v", err)
	}
	if string(s1) == string(s2) {
		t.Error("シークレットは生成ごとに異なるべきです")
	}

	if _, err := NewSecret(0); err == nil {
		t.Error("長さ0のシークレット生成がエラーになりませんでした")
	}
}

func TestCodec_IssueAndDecode(t *testing.T) {
	codec := newTestCodec(t)

	scopes := []Scope{
		ScopeAccess,
		ScopeRefresh,
		ScopeEmailVerification,
		ScopePasswordReset,
		ScopePasswordSet,
	}
	for _, scope := range scopes {
		token, err := codec.Issue("alice@example.com", scope, time.Minute)
		if err != nil {
			t.Fatalf("Issue(%s) returned error: %v", scope, err)
		}

		subject, err := codec.Decode(token, scope)
		if err != nil {
			t.Fatalf("Decode(%s) returned error: %v", scope, err)
		}
		if subject != "alice@example.com" {
			t.Errorf("Decode(%s) = %q, 期待値 %q", scope, subject, "alice@example.com")
		}
	}
}

func TestCodec_Decode_WrongScope(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("alice@example.com", ScopeRefresh, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// 署名・期限が正しくてもスコープ不一致は専用エラーで拒否する
	_, err = codec.Decode(token, ScopeAccess)
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("Decode error = %v, 期待値 ErrInvalidScope", err)
	}
}

func TestCodec_Decode_Expired(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("alice@example.com", ScopeAccess, -time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	_, err = codec.Decode(token, ScopeAccess)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Decode error = %v, 期待値 ErrExpiredToken", err)
	}
}

func TestCodec_Decode_ExpiredWrongScope(t *testing.T) {
	codec := newTestCodec(t)

	// 期限切れかつスコープ不一致の場合は期限切れエラーが優先される
	token, err := codec.Issue("alice@example.com", ScopeRefresh, -time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	_, err = codec.Decode(token, ScopeAccess)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Decode error = %v, 期待値 ErrExpiredToken", err)
	}
}

func TestCodec_Decode_Malformed(t *testing.T) {
	codec := newTestCodec(t)

	for _, token := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		_, err := codec.Decode(token, ScopeAccess)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Decode(%q) error = %v, 期待値 ErrInvalidToken", token, err)
		}
	}
}

func TestCodec_Decode_WrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other := newTestCodec(t)

	token, err := codec.Issue("alice@example.com", ScopeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	_, err = other.Decode(token, ScopeAccess)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode error = %v, 期待値 ErrInvalidToken", err)
	}
}

func TestCodec_ExpiryOf(t *testing.T) {
	codec := newTestCodec(t)

	base := time.Now()
	codec.SetClock(func() time.Time { return base })

	token, err := codec.Issue("alice@example.com", ScopeAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	exp, err := codec.ExpiryOf(token)
	if err != nil {
		t.Fatalf("ExpiryOf returned error: %v", err)
	}
	want := base.Add(time.Hour)
	if exp.Unix() != want.Unix() {
		t.Errorf("ExpiryOf = %v, 期待値 %v", exp, want)
	}
}

func TestCodec_ExpiryOf_ExpiredToken(t *testing.T) {
	codec := newTestCodec(t)

	// 期限切れトークンでもexpクレームは読み取れる（失効リストのTTL計算に必要）
	token, err := codec.Issue("alice@example.com", ScopeAccess, -time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	exp, err := codec.ExpiryOf(token)
	if err != nil {
		t.Fatalf("ExpiryOf returned error: %v", err)
	}
	if !exp.Before(time.Now()) {
		t.Errorf("ExpiryOf = %v, 過去の時刻を期待", exp)
	}
}

func TestDefaultTTL(t *testing.T) {
	tests := []struct {
		scope Scope
		want  time.Duration
	}{
		{ScopeAccess, 15 * time.Minute},
		{ScopeRefresh, 7 * 24 * time.Hour},
		{ScopeEmailVerification, 7 * 24 * time.Hour},
		{ScopePasswordReset, 7 * 24 * time.Hour},
		{ScopePasswordSet, 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := DefaultTTL(tt.scope); got != tt.want {
			t.Errorf("DefaultTTL(%s) = %v, 期待値 %v", tt.scope, got, tt.want)
		}
	}
}
