// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/photoshare/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 認証フローは常にこのインターフェース経由で最新状態を読む（キャッシュを経由しない）。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Count は登録ユーザー数を返す。最初のユーザーを管理者にする判定に使う。
	Count(ctx context.Context) (int, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateRefreshToken はリフレッシュトークンを差し替える。空文字でクリアする。
	UpdateRefreshToken(ctx context.Context, id, token string) error

	// ConfirmEmail はメール確認済みフラグを立てる。
	ConfirmEmail(ctx context.Context, id string) error

	// SetPasswordValid はパスワード有効フラグを更新する。
	// falseはパスワードリセット申請中を意味し、ログインがブロックされる。
	SetPasswordValid(ctx context.Context, id string, valid bool) error

	// UpdatePassword はパスワードハッシュを差し替え、パスワード有効フラグを立てる。
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateProfile はユーザー名とメールアドレスを更新する。
	UpdateProfile(ctx context.Context, id, username, email string) error

	// UpdateAvatar はアバターURLを更新する。
	UpdateAvatar(ctx context.Context, id, avatarURL string) error

	// SetRole はユーザーのロールを変更する。
	SetRole(ctx context.Context, id string, role model.Role) error

	// SetActive はアカウントの有効/無効を切り替える。
	SetActive(ctx context.Context, id string, active bool) error
}

// ContactFilter は連絡先一覧の検索条件。空フィールドは条件に含めない。
type ContactFilter struct {
	FirstName string // 部分一致
	LastName  string // 部分一致
	Email     string // 部分一致
	Offset    int
	Limit     int // 0の場合は制限なし
}

// ContactRepository は連絡先データの永続化インターフェース。
// 全操作が所有者のuserIDでスコープされる。
type ContactRepository interface {
	// FindByID は指定ユーザーの連絡先を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Contact, error)

	// List は指定ユーザーの連絡先一覧をフィルタ付きで返す。
	List(ctx context.Context, userID string, filter ContactFilter) ([]*model.Contact, error)

	// ExistsByEmailOrPhone は同一ユーザー内でメールまたは電話番号が重複するか判定する。
	// excludeIDが空でない場合、そのIDの連絡先は重複判定から除外する（更新時の自分自身）。
	ExistsByEmailOrPhone(ctx context.Context, userID, email, phone, excludeID string) (bool, error)

	// Create は連絡先を作成する。
	Create(ctx context.Context, contact *model.Contact) error

	// Update は連絡先を上書き更新する。
	Update(ctx context.Context, contact *model.Contact) error

	// Delete は指定ユーザーの連絡先を削除する。
	Delete(ctx context.Context, userID, id string) error
}

// ImageRepository は画像データの永続化インターフェース。
type ImageRepository interface {
	// FindByID は指定IDの画像をタグ付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Image, error)

	// ListByUser は指定ユーザーの画像一覧をタグ付きで返す。作成日時の降順。
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Image, error)

	// Create は画像を作成する。
	Create(ctx context.Context, image *model.Image) error

	// UpdateDescription は画像の説明文を更新する。
	UpdateDescription(ctx context.Context, id, description string) error

	// UpdateURL は画像のURLを差し替える。変形画像の保存に使う。
	UpdateURL(ctx context.Context, id, url string) error

	// ReplaceTags は画像のタグ紐付けを与えられたタグIDの集合で置き換える。
	ReplaceTags(ctx context.Context, imageID string, tagIDs []string) error

	// Delete は画像を削除する。タグ紐付け、コメント、評価はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// TagRepository はタグデータの永続化インターフェース。
type TagRepository interface {
	// FindByID は指定IDのタグを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Tag, error)

	// FindByTitle はタイトルでタグを検索する。見つからない場合はnilを返す。
	FindByTitle(ctx context.Context, title string) (*model.Tag, error)

	// List はタグ一覧を返す。タイトルの昇順。
	List(ctx context.Context, offset, limit int) ([]*model.Tag, error)

	// Create はタグを作成する。
	Create(ctx context.Context, tag *model.Tag) error

	// UpdateTitle はタグのタイトルを変更する。
	UpdateTitle(ctx context.Context, id, title string) error

	// Delete はタグを削除する。画像との紐付けもCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// ListByImage は指定画像のコメント一覧を返す。作成日時の昇順。
	ListByImage(ctx context.Context, imageID string, offset, limit int) ([]*model.Comment, error)

	// ListByUser は指定ユーザーが投稿したコメント一覧を返す。作成日時の降順。
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Comment, error)

	// ListReplies は指定コメントへの返信一覧を返す。作成日時の昇順。
	ListReplies(ctx context.Context, parentID string) ([]*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// UpdateBody はコメント本文を更新する。
	UpdateBody(ctx context.Context, id, body string) error

	// Delete はコメントを削除する。子コメントもCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// RankedAverage は画像IDとその平均評価の組。
type RankedAverage struct {
	ImageID string
	AvgRate float64
}

// RateRepository は画像評価データの永続化インターフェース。
type RateRepository interface {
	// FindByID は指定IDの評価を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Rate, error)

	// FindByImageAndUser は画像とユーザーの組で評価を検索する。見つからない場合はnilを返す。
	FindByImageAndUser(ctx context.Context, imageID, userID string) (*model.Rate, error)

	// ListByImage は指定画像の評価一覧を返す。
	ListByImage(ctx context.Context, imageID string) ([]*model.Rate, error)

	// ListByUser は指定ユーザーが付けた評価一覧を返す。作成日時の降順。
	ListByUser(ctx context.Context, userID string) ([]*model.Rate, error)

	// AverageByImage は指定画像の平均評価を返す。
	// 評価が1件もない場合は (0, false, nil) を返す。
	AverageByImage(ctx context.Context, imageID string) (float64, bool, error)

	// RankedAverages は平均評価の高い順に画像IDと平均の組を返す。
	RankedAverages(ctx context.Context, offset, limit int) ([]RankedAverage, error)

	// Create は評価を作成する。
	Create(ctx context.Context, rate *model.Rate) error

	// Delete は評価を削除する。
	Delete(ctx context.Context, id string) error
}
