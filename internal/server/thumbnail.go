package server

import (
	"bytes"
	"image/jpeg"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/nfnt/resize"

	"draw-relay/internal/models"
	"draw-relay/internal/render"
)

const thumbnailSize = 300

// ThumbnailCache stores generated thumbnails keyed by submission id.
type ThumbnailCache struct {
	cache map[int64][]byte
	mu    sync.RWMutex
}

func NewThumbnailCache() *ThumbnailCache {
	return &ThumbnailCache{cache: make(map[int64][]byte)}
}

func (tc *ThumbnailCache) get(id int64) ([]byte, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	data, ok := tc.cache[id]
	return data, ok
}

func (tc *ThumbnailCache) put(id int64, data []byte) {
	tc.mu.Lock()
	tc.cache[id] = data
	tc.mu.Unlock()
}

// Reset drops every cached thumbnail. Called after deleteAll.
func (tc *ThumbnailCache) Reset() {
	tc.mu.Lock()
	tc.cache = make(map[int64][]byte)
	tc.mu.Unlock()
}

// handleThumbnail serves a downsized JPEG of a rendered submission.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/thumbnail/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	if cached, ok := s.thumbs.get(id); ok {
		serveThumbnail(w, cached)
		return
	}

	var sub *models.Submission
	for _, candidate := range s.store.Snapshot() {
		if candidate.ID == id {
			sub = candidate
			break
		}
	}
	if sub == nil {
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	}

	thumb := resize.Thumbnail(thumbnailSize, thumbnailSize, render.Render(sub.Strokes), resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		log.Printf("Failed to encode thumbnail for %d: %v", id, err)
		http.Error(w, "Failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	s.thumbs.put(id, buf.Bytes())
	serveThumbnail(w, buf.Bytes())
}

func serveThumbnail(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
