package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// NewSPAHandler はビルド済みフロントエンドを配信するハンドラーを生成する。
// 存在しないパスはindex.htmlを返し、クライアント側のルーティングに任せる。
func NewSPAHandler(root fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if _, err := fs.Stat(root, name); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			http.ServeFileFS(w, r, root, "index.html")
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

// NewSPAHandlerFromDir はディレクトリを配信元とするNewSPAHandlerを返す。
// ディレクトリが存在しない場合はnilを返す。
func NewSPAHandlerFromDir(dir string) http.Handler {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}
	return NewSPAHandler(os.DirFS(dir))
}
