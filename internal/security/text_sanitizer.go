package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は番組タイトルやチャンネル名などのプレーンテキストを
// 番組表に表示する前にサニタイズするインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	Sanitize(raw string) string
}

// TextSanitizer はbluemondayのStrictPolicyを使用したTextSanitizerServiceの実装。
// Policyはスレッドセーフなため共有して使用できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去する。
// StrictPolicyは "&" 等をエスケープするため、プレーンテキストとして保存できるよう元に戻す。
func (s *TextSanitizer) Sanitize(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
