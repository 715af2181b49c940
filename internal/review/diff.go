package review

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Pavel401/bugviper/internal/models"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// ParseUnifiedDiff extracts the changed line ranges per file from a unified
// diff. Each hunk maps to the post-change line span of the file.
func ParseUnifiedDiff(diff string) []models.Hunk {
	var hunks []models.Hunk
	currentFile := ""

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "):
			target := strings.TrimPrefix(line, "+++ ")
			target = strings.TrimSpace(target)
			if target == "/dev/null" {
				currentFile = ""
				continue
			}
			currentFile = strings.TrimPrefix(target, "b/")

		case strings.HasPrefix(line, "@@"):
			if currentFile == "" {
				continue
			}
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start, _ := strconv.Atoi(m[1])
			count := 1
			if m[2] != "" {
				count, _ = strconv.Atoi(m[2])
			}
			end := start
			if count > 0 {
				end = start + count - 1
			}
			hunks = append(hunks, models.Hunk{
				FilePath:  currentFile,
				StartLine: start,
				EndLine:   end,
			})
		}
	}
	return hunks
}

// HunksFromChanges derives whole-file hunks from a change list when no diff
// text is available: every changed file maps to its full line range.
func HunksFromChanges(changes []models.ChangeRecord) []models.Hunk {
	var hunks []models.Hunk
	for _, change := range changes {
		if change.Status == models.ChangeRemoved {
			continue
		}
		hunks = append(hunks, models.Hunk{
			FilePath:  change.Filename,
			StartLine: 1,
			EndLine:   1 << 30,
		})
	}
	return hunks
}
