package model

import "time"

// MaxTagsPerImage は1枚の画像に付与できるタグ数の上限。
const MaxTagsPerImage = 5

// Image はCloudinaryにアップロードされた画像のメタデータを表す。
// URLはCloudinaryのsecure URL。変換を適用するとURLが上書きされる。
type Image struct {
	ID          string
	UserID      string
	URL         string
	Description string
	Tags        []Tag
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tag は画像に付与するタグを表す。タイトルは小文字で正規化して保存する。
type Tag struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment は画像へのコメントを表す。
// ParentIDが空でない場合はサブコメント（ネストは1段まで）。
type Comment struct {
	ID        string
	ImageID   string
	UserID    string
	ParentID  string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rate は画像への評価（1〜5）を表す。
// 自分の画像は評価できず、1ユーザー1画像につき1件まで。
type Rate struct {
	ID        string
	ImageID   string
	UserID    string
	Value     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageAvgRate は画像と評価の平均値の組を表す。
// 評価が1件もない場合、AvgRateは0でHasRatesはfalseになる。
type ImageAvgRate struct {
	Image    Image
	AvgRate  float64
	HasRates bool
}
