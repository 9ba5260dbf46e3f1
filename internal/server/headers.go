package server

import (
	"net/http"
)

const (
	HeaderEmbedderPolicy = "Cross-Origin-Embedder-Policy"
	HeaderOpenerPolicy   = "Cross-Origin-Opener-Policy"
)

// Finalizer edits response headers right before they are sent.
type Finalizer func(h http.Header)

// IsolationHeaders opts the page into cross-origin isolation, which browsers
// require before exposing SharedArrayBuffer.
func IsolationHeaders(h http.Header) {
	h.Set(HeaderEmbedderPolicy, "require-corp")
	h.Set(HeaderOpenerPolicy, "same-origin")
}

// Finalize runs fns over the headers of every response produced by next,
// including error responses and responses where next wrote nothing.
func Finalize(next http.Handler, fns ...Finalizer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fw := &finalizingWriter{ResponseWriter: w, fns: fns}
		next.ServeHTTP(fw, r)
		if !fw.done {
			fw.WriteHeader(http.StatusOK)
		}
	})
}

type finalizingWriter struct {
	http.ResponseWriter
	fns  []Finalizer
	done bool
}

func (w *finalizingWriter) finalize() {
	if w.done {
		return
	}
	w.done = true
	h := w.ResponseWriter.Header()
	for _, fn := range w.fns {
		fn(h)
	}
}

func (w *finalizingWriter) WriteHeader(code int) {
	// 1xx responses are interim; the final header block comes later.
	if code >= 100 && code < 200 {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.finalize()
	w.ResponseWriter.WriteHeader(code)
}

func (w *finalizingWriter) Write(b []byte) (int, error) {
	w.finalize()
	return w.ResponseWriter.Write(b)
}

func (w *finalizingWriter) Flush() {
	w.finalize()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *finalizingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
