package upstream

import (
	"errors"
	"net/url"
)

// redact はエラーメッセージからURL（クエリに認証情報を含む）を取り除く。
// *url.Errorの場合は操作名と原因のみを残す。
func redact(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Op + ": " + urlErr.Err.Error()
	}
	return err.Error()
}
