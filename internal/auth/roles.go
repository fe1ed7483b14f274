package auth

import "github.com/hitoshi/photoshare/internal/model"

// RoleGate は解決済みユーザーのロールを許可リストと照合する。
// 副作用のない述語であり、セッション解決の後に使うこと。
type RoleGate struct {
	allowed map[model.Role]struct{}
}

// NewRoleGate は許可ロールの集合からRoleGateを生成する。
func NewRoleGate(allowed ...model.Role) *RoleGate {
	set := make(map[model.Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return &RoleGate{allowed: set}
}

// Allow はユーザーのロールが許可されていない場合ErrForbiddenを返す。
func (g *RoleGate) Allow(user *model.User) error {
	if user == nil {
		return ErrForbidden
	}
	if _, ok := g.allowed[user.Role]; !ok {
		return ErrForbidden
	}
	return nil
}
