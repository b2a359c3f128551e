// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はタスク種別や植物名などユーザーが入力する短いテキストから
// HTMLタグを取り除く。保存した値はクライアントでそのまま表示されるため、
// タグを一切許可しないbluemondayのStrictPolicyを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize はすべてのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// script、styleなどは中身ごと除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxPasses は実体参照で隠されたタグを除去するための最大反復回数。
const maxPasses = 4

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// bluemondayがエスケープした実体参照は元の文字に戻す（保存値はHTMLではないため）。
// 戻した結果にタグが現れる場合は、変化がなくなるまで繰り返す。
func (s *textSanitizer) Sanitize(raw string) string {
	out := raw
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}
