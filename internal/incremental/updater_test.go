package incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pavel401/bugviper/internal/models"
)

func TestClassifySplitsByStatus(t *testing.T) {
	stats := &models.IncrementalStats{}
	plan := classify([]models.ChangeRecord{
		{Filename: "a.py", Status: models.ChangeAdded},
		{Filename: "b.py", Status: models.ChangeModified},
		{Filename: "c.py", Status: models.ChangeRemoved},
		{Filename: "new.py", Status: models.ChangeRenamed, PreviousFilename: "old.py"},
	}, stats)

	assert.Equal(t, []string{"a.py", "new.py"}, plan.toAdd)
	assert.Equal(t, []string{"b.py"}, plan.toModify)
	assert.Equal(t, []string{"c.py", "old.py"}, plan.toDelete)

	assert.Equal(t, 1, stats.FilesAdded)
	assert.Equal(t, 1, stats.FilesModified)
	assert.Equal(t, 1, stats.FilesDeleted)
	assert.Equal(t, 1, stats.FilesRenamed)

	for _, path := range []string{"a.py", "b.py", "c.py", "new.py", "old.py"} {
		assert.True(t, plan.affected[path], "expected %s in affected set", path)
	}
}

func TestClassifySkipsUnsupportedExtensions(t *testing.T) {
	stats := &models.IncrementalStats{}
	plan := classify([]models.ChangeRecord{
		{Filename: "README.md", Status: models.ChangeModified},
		{Filename: "image.png", Status: models.ChangeAdded},
		{Filename: "keep.py", Status: models.ChangeModified},
	}, stats)

	assert.Empty(t, plan.toAdd)
	assert.Equal(t, []string{"keep.py"}, plan.toModify)
	assert.Len(t, plan.affected, 1)
	assert.Equal(t, 1, stats.FilesModified)
}

func TestClassifyEmptyChangeSet(t *testing.T) {
	stats := &models.IncrementalStats{}
	plan := classify(nil, stats)

	assert.Empty(t, plan.toAdd)
	assert.Empty(t, plan.toModify)
	assert.Empty(t, plan.toDelete)
	assert.Empty(t, plan.affected)
}
