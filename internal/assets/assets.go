// Package assets serves the browser client that keeps rendered tutorials in
// sync with the server.
package assets

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"path"
	"sync"
)

//go:embed client/*
var clientFS embed.FS

var contentTypes = map[string]string{
	".js":  "application/javascript; charset=utf-8",
	".css": "text/css; charset=utf-8",
}

// File is a static asset with a content-derived ETag.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	ETag        string
}

// New wraps data as a servable asset.
func New(name, contentType string, data []byte) *File {
	sum := sha256.Sum256(data)
	return &File{
		Name:        name,
		ContentType: contentType,
		Data:        data,
		ETag:        `"` + hex.EncodeToString(sum[:8]) + `"`,
	}
}

// ServeHTTP writes the asset, answering a matching If-None-Match with 304.
func (f *File) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("ETag", f.ETag)
	h.Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == f.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", f.ContentType)
	_, _ = w.Write(f.Data)
}

var client = sync.OnceValue(func() map[string]*File {
	files := make(map[string]*File)
	entries, err := fs.ReadDir(clientFS, "client")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		ct, ok := contentTypes[path.Ext(e.Name())]
		if e.IsDir() || !ok {
			continue
		}
		data, err := clientFS.ReadFile("client/" + e.Name())
		if err != nil {
			panic(err)
		}
		files[e.Name()] = New(e.Name(), ct, data)
	}
	return files
})

// Lookup returns the embedded client file called name.
func Lookup(name string) (*File, bool) {
	f, ok := client()[name]
	return f, ok
}
