// Package upload はCloudinaryへの画像アップロードを提供する。
package upload

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/hitoshi/photoshare/internal/image"
)

// アバターは固定サイズに切り抜いて配信する。
const avatarTransformation = "c_fill,h_250,w_250/"

// バージョンセグメント（v1234567890）の判定。
var versionSegment = regexp.MustCompile(`^v\d+$`)

// Cloudinary は画像とアバターのアップロード先としてのCloudinaryクライアント。
// image.Uploaderとuser.AvatarUploaderの両方を実装する。
type Cloudinary struct {
	client *cloudinary.Cloudinary
}

var _ image.Uploader = (*Cloudinary)(nil)

// NewCloudinary はCloudinaryクライアントを生成する。
func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	client, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}
	return &Cloudinary{client: client}, nil
}

// Upload は画像をアップロードし、配信用のsecure URLを返す。
// 同じpublic IDへの再アップロードは前の画像を上書きする。
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, publicID string) (string, error) {
	resp, err := c.client.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:  publicID,
		Overwrite: api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	return resp.SecureURL, nil
}

// UploadAvatar はアバター画像をアップロードし、250x250に切り抜いたURLを返す。
func (c *Cloudinary) UploadAvatar(ctx context.Context, r io.Reader, userID string) (string, error) {
	url, err := c.Upload(ctx, r, "photoshare/avatars/"+userID)
	if err != nil {
		return "", err
	}
	return insertTransformation(url, avatarTransformation), nil
}

// Transform は配信URLに変形チャンクを適用した新しいURLを返す。
// Cloudinaryは配信時変形なので、アップロードし直す必要はない。
func (c *Cloudinary) Transform(_ context.Context, url string, t image.Transformation) (string, error) {
	transformed := insertTransformation(url, string(t))
	if transformed == url {
		return "", fmt.Errorf("not a cloudinary delivery URL: %s", url)
	}
	return transformed, nil
}

// Destroy は配信URLからpublic IDを割り出し、アップロード済み画像を削除する。
func (c *Cloudinary) Destroy(ctx context.Context, url string) error {
	publicID := publicIDFromURL(url)
	if publicID == "" {
		return fmt.Errorf("cannot derive public ID from URL: %s", url)
	}
	if _, err := c.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("failed to destroy cloudinary asset: %w", err)
	}
	return nil
}

// insertTransformation は/upload/の直後に変形チャンクを挿入する。
// Cloudinaryの配信URL以外はそのまま返す。
func insertTransformation(url, chunk string) string {
	return strings.Replace(url, "/upload/", "/upload/"+chunk, 1)
}

// publicIDFromURL は配信URLからpublic IDを取り出す。
// 変形チャンク（カンマを含むセグメント）とバージョンセグメントを読み飛ばし、
// 残りのパスから拡張子を取り除いたものがpublic ID。
func publicIDFromURL(url string) string {
	_, after, found := strings.Cut(url, "/upload/")
	if !found {
		return ""
	}
	segments := strings.Split(after, "/")
	start := 0
	for start < len(segments) {
		s := segments[start]
		if strings.Contains(s, ",") || versionSegment.MatchString(s) {
			start++
			continue
		}
		break
	}
	path := strings.Join(segments[start:], "/")
	if dot := strings.LastIndex(path, "."); dot > strings.LastIndex(path, "/") {
		path = path[:dot]
	}
	return path
}
