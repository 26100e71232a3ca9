package export

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QREncoder はインポートURLをQRコード画像にエンコードするインターフェース。
// 画像化はプレゼンテーション上の補助であり、失敗してもエクスポート自体は成立する。
type QREncoder interface {
	// Encode は指定URLをPNG画像にエンコードし、base64文字列で返す。
	Encode(url string) (string, error)
}

// pngQREncoder はgo-qrcodeを使用したQREncoderの実装。
type pngQREncoder struct {
	size int
}

// NewQREncoder は256x256ピクセルのPNGを生成するQREncoderを返す。
func NewQREncoder() *pngQREncoder {
	return &pngQREncoder{size: 256}
}

// Encode は指定URLをQRコードPNGにエンコードし、base64文字列で返す。
func (e *pngQREncoder) Encode(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, e.size)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
