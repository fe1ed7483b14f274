// Package qr はQRコード画像の生成を提供する。
package qr

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Generator はgo-qrcodeを使ったQRコード生成器。
type Generator struct{}

// NewGenerator はGeneratorを生成する。
func NewGenerator() *Generator {
	return &Generator{}
}

// Encode はcontentを埋め込んだ一辺sizeピクセルのPNG画像を返す。
// 誤り訂正レベルはMedium（15%）を使う。
func (g *Generator) Encode(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}
