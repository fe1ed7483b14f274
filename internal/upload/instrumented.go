package upload

import (
	"context"
	"io"

	"github.com/hitoshi/photoshare/internal/image"
	"github.com/hitoshi/photoshare/internal/user"
)

// UploadRecorder はアップロード回数を種別ごとに記録するインターフェース。
type UploadRecorder interface {
	RecordUpload(kind string)
}

// Instrumented はCloudinaryをラップし、成功したアップロードを
// 種別（image / avatar）ごとに記録する。
type Instrumented struct {
	inner *Cloudinary
	rec   UploadRecorder
}

var (
	_ image.Uploader      = (*Instrumented)(nil)
	_ user.AvatarUploader = (*Instrumented)(nil)
)

// NewInstrumented は計測付きのアップローダーを生成する。
func NewInstrumented(inner *Cloudinary, rec UploadRecorder) *Instrumented {
	return &Instrumented{inner: inner, rec: rec}
}

// Upload は画像をアップロードし、成功時にimage種別で記録する。
func (i *Instrumented) Upload(ctx context.Context, file io.Reader, publicID string) (string, error) {
	url, err := i.inner.Upload(ctx, file, publicID)
	if err != nil {
		return "", err
	}
	i.rec.RecordUpload("image")
	return url, nil
}

// UploadAvatar はアバターをアップロードし、成功時にavatar種別で記録する。
func (i *Instrumented) UploadAvatar(ctx context.Context, file io.Reader, userID string) (string, error) {
	url, err := i.inner.UploadAvatar(ctx, file, userID)
	if err != nil {
		return "", err
	}
	i.rec.RecordUpload("avatar")
	return url, nil
}

// Transform は内側のアップローダーへ委譲する。
func (i *Instrumented) Transform(ctx context.Context, url string, t image.Transformation) (string, error) {
	return i.inner.Transform(ctx, url, t)
}

// Destroy は内側のアップローダーへ委譲する。
func (i *Instrumented) Destroy(ctx context.Context, url string) error {
	return i.inner.Destroy(ctx, url)
}
