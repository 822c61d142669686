package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchat/internal/parser"
	"github.com/dgallion1/docchat/internal/session"
)

// errTooLarge marks an upload that exceeds the configured limits.
type errTooLarge struct{ msg string }

func (e errTooLarge) Error() string { return e.msg }

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	files, err := s.readUploads(w, r)
	if err != nil {
		uploadError(w, err)
		return
	}
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	summary, err := sess.Upload(r.Context(), files)
	if err != nil {
		jsonError(w, "index build failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	files, err := s.readUploads(w, r)
	if err != nil {
		uploadError(w, err)
		return
	}

	turns := sess.Chat(r.Context(), files, r.FormValue("question"))
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"turns":      turns,
	})
}

// readUploads reads the "files" parts of a multipart request. The request is
// rejected as a whole when it carries too many or too large files.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]session.File, error) {
	maxFiles := int64(max(1, s.cfg.MaxFiles))
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxFiles+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) > s.cfg.MaxFiles {
		return nil, errTooLarge{fmt.Sprintf("too many files (%d, max %d)", len(headers), s.cfg.MaxFiles)}
	}

	files := make([]session.File, 0, len(headers))
	for _, fh := range headers {
		name := sanitizeFilename(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			return nil, errTooLarge{fmt.Sprintf("%s exceeds max size (%d bytes)", name, s.cfg.MaxUploadBytes)}
		}
		if !parser.IsSupportedExtension(name) {
			s.log.Warn("unsupported upload", "filename", name, "ext", filepath.Ext(name))
		}
		files = append(files, session.File{Name: name, Data: data})
	}
	return files, nil
}

func uploadError(w http.ResponseWriter, err error) {
	var tooLarge errTooLarge
	var maxBytes *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.As(err, &maxBytes) {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	jsonError(w, err.Error(), http.StatusBadRequest)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
