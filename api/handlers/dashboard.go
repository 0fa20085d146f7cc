package handlers

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFiles embed.FS

// DashboardHandler 返回内嵌看板：/ 为首页，/static/ 为资源文件
func DashboardHandler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// embed 路径在编译期确定
		panic(err)
	}
	files := http.FileServer(http.FS(sub))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", files))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFileFS(w, r, sub, "index.html")
	})
	return mux
}
