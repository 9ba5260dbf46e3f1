package server

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"

	"github.com/spf13/afero"
)

// fileHandler serves regular files itself and hands directories to
// http.FileServer for the trailing-slash redirect, index.html and listings.
type fileHandler struct {
	fs       afero.Fs
	dirs     http.Handler
	mimes    MIMETable
	listDirs bool
	logger   *slog.Logger
}

func newFileHandler(fsys afero.Fs, mimes MIMETable, listDirs bool, logger *slog.Logger) *fileHandler {
	return &fileHandler{
		fs:       fsys,
		dirs:     http.FileServer(afero.NewHttpFs(fsys)),
		mimes:    mimes,
		listDirs: listDirs,
		logger:   logger,
	}
}

func (h *fileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "405 - Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	name, err := cleanRequestPath(r.URL.Path)
	if err != nil {
		h.logger.Debug("Rejected request path", "path", r.URL.Path, "error", err)
		http.Error(w, "403 - Forbidden: Invalid path", http.StatusForbidden)
		return
	}

	info, err := h.fs.Stat(name)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		case errors.Is(err, fs.ErrPermission):
			http.Error(w, "403 - Forbidden", http.StatusForbidden)
		default:
			h.logger.Warn("Failed to stat file", "path", name, "error", err)
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	if info.IsDir() {
		if !h.listDirs && !h.hasIndex(name) {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		h.dirs.ServeHTTP(w, r)
		return
	}

	if !info.Mode().IsRegular() {
		http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		return
	}

	h.serveFile(w, r, name, info)
}

func (h *fileHandler) serveFile(w http.ResponseWriter, r *http.Request, name string, info fs.FileInfo) {
	f, err := h.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			http.Error(w, "403 - Forbidden", http.StatusForbidden)
			return
		}
		h.logger.Warn("Failed to open file", "path", name, "error", err)
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			h.logger.Warn("Failed to close file", "path", name, "error", cerr)
		}
	}()

	// ServeContent keeps a preset Content-Type and answers If-None-Match from Etag
	w.Header().Set("Content-Type", h.mimes.Lookup(name))
	w.Header().Set("Etag", contentETag(info))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *fileHandler) hasIndex(dir string) bool {
	info, err := h.fs.Stat(path.Join(dir, "index.html"))
	return err == nil && info.Mode().IsRegular()
}
