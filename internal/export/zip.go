package export

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/flate"

	"draw-relay/internal/models"
	"draw-relay/internal/render"
)

// WriteArchive renders every submission and streams the PNGs into a zip
// on w. The caller hands us the HTTP response body directly, so any
// mid-stream failure aborts the archive rather than silently omitting
// entries.
func WriteArchive(w io.Writer, subs []*models.Submission) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	sorted := make([]*models.Submission, len(subs))
	copy(sorted, subs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	// Calendar-style names can collide for submissions created within the
	// same second; a counter keeps every submission in the archive.
	seen := make(map[string]int)

	for _, sub := range sorted {
		name := FileName(sub)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}

		entry, err := zw.Create(name + ".png")
		if err != nil {
			return fmt.Errorf("failed to create archive entry for %d: %w", sub.ID, err)
		}

		data, err := render.EncodePNG(render.Render(sub.Strokes))
		if err != nil {
			return fmt.Errorf("failed to render submission %d: %w", sub.ID, err)
		}
		if _, err := entry.Write(data); err != nil {
			return fmt.Errorf("failed to write submission %d: %w", sub.ID, err)
		}
	}

	return zw.Close()
}

// FileName derives the human-readable base name (no extension) for a
// submission: its creation instant plus an approval-state suffix.
func FileName(sub *models.Submission) string {
	name := sub.CreatedAt.Format("2006-01-02_15-04-05")
	switch sub.Approved {
	case models.ApprovalApproved:
		name += "_approved"
	case models.ApprovalDenied:
		name += "_denied"
	}
	return name
}
