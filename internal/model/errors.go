package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAccountExists     = "ACCOUNT_EXISTS"
	ErrCodeInvalidEmail      = "INVALID_EMAIL"
	ErrCodeInvalidPassword   = "INVALID_PASSWORD"
	ErrCodeEmailNotConfirmed = "EMAIL_NOT_CONFIRMED"
	ErrCodePasswordNotSet    = "PASSWORD_RESET_PENDING"
	ErrCodeAccountInactive   = "ACCOUNT_INACTIVE"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeContactNotFound   = "CONTACT_NOT_FOUND"
	ErrCodeContactConflict   = "CONTACT_CONFLICT"
	ErrCodeImageNotFound     = "IMAGE_NOT_FOUND"
	ErrCodeCommentNotFound   = "COMMENT_NOT_FOUND"
	ErrCodeRateNotFound      = "RATE_NOT_FOUND"
	ErrCodeRateRejected      = "RATE_REJECTED"
	ErrCodeTagNotFound       = "TAG_NOT_FOUND"
	ErrCodeInvalidTag        = "INVALID_TAG"
	ErrCodeTooManyTags       = "TOO_MANY_TAGS"
	ErrCodeValidation        = "VALIDATION_FAILED"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found: %s", username),
		Category: "auth",
		Action:   "Check the username and try again.",
	}
}

// NewContactNotFoundError は連絡先が見つからない場合のエラーを生成する。
func NewContactNotFoundError(contactID string) *APIError {
	return &APIError{
		Code:     ErrCodeContactNotFound,
		Message:  fmt.Sprintf("Contact not found: %s", contactID),
		Category: "content",
		Action:   "Check the contact ID.",
	}
}

// NewContactConflictError は連絡先のメール/電話が重複する場合のエラーを生成する。
func NewContactConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeContactConflict,
		Message:  "The contact's email and/or phone already exist.",
		Category: "validation",
		Action:   "Use a different email or phone number.",
	}
}

// NewImageNotFoundError は画像が見つからない場合のエラーを生成する。
func NewImageNotFoundError(imageID string) *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  fmt.Sprintf("Image not found: %s", imageID),
		Category: "content",
		Action:   "Check the image ID.",
	}
}

// NewCommentNotFoundError はコメントが見つからない、または操作権限がない場合のエラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("Comment not found: %s", commentID),
		Category: "content",
		Action:   "Check the comment ID.",
	}
}

// NewRateRejectedError は評価が拒否された場合のエラーを生成する。
// 自分の画像への評価、重複評価が該当する。
func NewRateRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateRejected,
		Message:  "You cannot rate your own image, and each image can be rated only once.",
		Category: "validation",
		Action:   "Rate a different image.",
	}
}

// NewRateNotFoundError は評価が見つからない場合のエラーを生成する。
func NewRateNotFoundError(rateID string) *APIError {
	return &APIError{
		Code:     ErrCodeRateNotFound,
		Message:  fmt.Sprintf("Rate not found: %s", rateID),
		Category: "content",
		Action:   "Check the rate ID.",
	}
}

// NewTagNotFoundError はタグが見つからない場合のエラーを生成する。
func NewTagNotFoundError(title string) *APIError {
	return &APIError{
		Code:     ErrCodeTagNotFound,
		Message:  fmt.Sprintf("Tag not found: %s", title),
		Category: "content",
		Action:   "Check the tag title.",
	}
}

// NewInvalidTagError はタグのタイトルが不正な場合のエラーを生成する。
func NewInvalidTagError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTag,
		Message:  "Tag title must be 2-49 characters of letters, digits, '_', '.' or '-'.",
		Category: "validation",
		Action:   "Fix the tag title and try again.",
	}
}

// NewTooManyTagsError はタグ数の上限超過エラーを生成する。
func NewTooManyTagsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyTags,
		Message:  fmt.Sprintf("Cannot exceed the maximum number (%d) of tags per image.", MaxTagsPerImage),
		Category: "validation",
		Action:   "Remove a tag before adding a new one.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  detail,
		Category: "validation",
		Action:   "Fix the request body and try again.",
	}
}
