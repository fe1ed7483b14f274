package auth

import (
	"errors"
	"testing"

	"github.com/hitoshi/photoshare/internal/model"
)

func TestRoleGate_Allow(t *testing.T) {
	tests := []struct {
		name    string
		allowed []model.Role
		role    model.Role
		wantErr bool
	}{
		{"管理者のみ許可で管理者", []model.Role{model.RoleAdministrator}, model.RoleAdministrator, false},
		{"管理者のみ許可で一般ユーザー", []model.Role{model.RoleAdministrator}, model.RoleUser, true},
		{"管理者とモデレーター許可でモデレーター", []model.Role{model.RoleAdministrator, model.RoleModerator}, model.RoleModerator, false},
		{"管理者とモデレーター許可で一般ユーザー", []model.Role{model.RoleAdministrator, model.RoleModerator}, model.RoleUser, true},
		{"全ロール許可で一般ユーザー", []model.Role{model.RoleAdministrator, model.RoleModerator, model.RoleUser}, model.RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewRoleGate(tt.allowed...)
			err := gate.Allow(&model.User{ID: "user-1", Role: tt.role})
			if tt.wantErr && !errors.Is(err, ErrForbidden) {
				t.Errorf("Allow error = %v, 期待値 ErrForbidden", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Allow returned error: %v", err)
			}
		})
	}
}

func TestRoleGate_Allow_NilUser(t *testing.T) {
	gate := NewRoleGate(model.RoleUser)
	if err := gate.Allow(nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("Allow(nil) error = %v, 期待値 ErrForbidden", err)
	}
}
