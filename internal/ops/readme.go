package ops

import (
	"fmt"
	"os"
	"regexp"
	"time"
)

var lastUpdatedRe = regexp.MustCompile(`Last updated:.*`)

// StampReadme rewrites the "Last updated:" line in the README after a
// successful run. Callers treat failure as a warning; a stale stamp never
// blocks the pipeline.
func StampReadme(path string, date time.Time) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read readme: %w", err)
	}
	if !lastUpdatedRe.Match(raw) {
		return fmt.Errorf("readme has no 'Last updated:' line")
	}
	stamped := lastUpdatedRe.ReplaceAll(raw, []byte("Last updated: "+date.Format("2006-01-02")))
	if err := os.WriteFile(path, stamped, 0644); err != nil {
		return fmt.Errorf("failed to write readme: %w", err)
	}
	return nil
}
