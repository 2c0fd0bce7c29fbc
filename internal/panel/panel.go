package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var content embed.FS

// indexFile is the default document for "/" and for any directory.
const indexFile = "index.html"

// ValidateStaticDir checks that dir exists, is a directory and can be
// listed. An empty dir is valid and selects the embedded assets.
func ValidateStaticDir(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStaticRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStaticRoot, dir)
	}
	if _, err := os.ReadDir(dir); err != nil {
		return fmt.Errorf("%w: %w", ErrStaticRoot, err)
	}
	return nil
}

// Handler returns an http.Handler that serves the traffic light UI.
//
// With an empty dir the embedded assets are served. Otherwise files come
// from dir, which must pass ValidateStaticDir. "/" and any directory path
// serve that directory's index.html; a path with no matching file, or a
// directory without index.html, is a 404.
func Handler(dir string) (http.Handler, error) {
	root, err := rootFS(dir)
	if err != nil {
		return nil, err
	}

	fileServer := http.FileServer(http.FS(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		if !exists(root, r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	}), nil
}

func rootFS(dir string) (fs.FS, error) {
	if dir == "" {
		webFS, err := fs.Sub(content, "web")
		if err != nil {
			return nil, fmt.Errorf("loading embedded web assets: %w", err)
		}
		return webFS, nil
	}

	if err := ValidateStaticDir(dir); err != nil {
		return nil, err
	}
	return os.DirFS(dir), nil
}

// exists reports whether urlPath names a file, or a directory holding
// an index.html, within root.
func exists(root fs.FS, urlPath string) bool {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = "."
	}

	info, err := fs.Stat(root, name)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return true
	}

	_, err = fs.Stat(root, path.Join(name, indexFile))
	return err == nil
}
