package media

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// maxChunk caps the response to an open-ended range request at 1 MiB, so a
// single "bytes=0-" request cannot pin the whole file in one response.
const maxChunk int64 = 1 << 20

// fallbackContentType is used when the extension maps to no known type.
const fallbackContentType = "video/mp4"

// Handler serves GET /media/{roomId}/{fileName} with byte-range support.
type Handler struct {
	store *Store
}

// NewHandler returns a handler backed by store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Stream serves one media file. Without a Range header the whole file is
// returned; with one, the requested span is served as 206 Partial Content.
// Malformed or unsatisfiable ranges are rejected with 416 rather than
// failing the handler.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	fileName := chi.URLParam(r, "fileName")

	f, size, err := h.store.Open(roomID, fileName)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.WithFields(log.Fields{"roomId": roomID, "fileName": fileName}).
				WithError(err).Warn("media open failed")
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = fallbackContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		http.Error(w, "seek failed", http.StatusInternalServerError)
		return
	}
	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	io.CopyN(w, f, length)
}

// parseRange parses "bytes=<start>-<end>?". Start is required; an omitted
// end defaults to min(start+1MiB-1, size-1), and any end is clamped to
// size-1. A start at or past EOF, a reversed range, or non-numeric input is
// an error.
func parseRange(header string, size int64) (start, end int64, err error) {
	val, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit in %q", header)
	}
	startStr, endStr, ok := strings.Cut(val, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}

	start, err = strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range start in %q", header)
	}
	if start >= size {
		return 0, 0, fmt.Errorf("range start %d beyond size %d", start, size)
	}

	endStr = strings.TrimSpace(endStr)
	if endStr == "" {
		end = start + maxChunk - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("malformed range end in %q", header)
		}
	}
	if end > size-1 {
		end = size - 1
	}
	return start, end, nil
}
