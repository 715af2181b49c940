package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pavel401/bugviper/internal/models"
)

const sampleDiff = `diff --git a/src/app.py b/src/app.py
index 83db48f..bf269f4 100644
--- a/src/app.py
+++ b/src/app.py
@@ -10,7 +10,9 @@ class App:
     def run(self):
-        return 1
+        return 2
+
+    # extra
@@ -40 +44 @@ def other():
-    pass
+    return None
diff --git a/old.py b//dev/null
--- a/old.py
+++ /dev/null
@@ -1,3 +0,0 @@
-x = 1
-y = 2
-z = 3
diff --git a/new.js b/new.js
--- /dev/null
+++ b/new.js
@@ -0,0 +1,2 @@
+const a = 1;
+const b = 2;
`

func TestParseUnifiedDiff(t *testing.T) {
	hunks := ParseUnifiedDiff(sampleDiff)
	require.Len(t, hunks, 3)

	assert.Equal(t, models.Hunk{FilePath: "src/app.py", StartLine: 10, EndLine: 18}, hunks[0])
	assert.Equal(t, models.Hunk{FilePath: "src/app.py", StartLine: 44, EndLine: 44}, hunks[1])
	// Deleted files produce no post-change hunks; added files do
	assert.Equal(t, models.Hunk{FilePath: "new.js", StartLine: 1, EndLine: 2}, hunks[2])
}

func TestParseUnifiedDiffEmpty(t *testing.T) {
	assert.Empty(t, ParseUnifiedDiff(""))
	assert.Empty(t, ParseUnifiedDiff("not a diff at all\njust text\n"))
}

func TestHunksFromChanges(t *testing.T) {
	hunks := HunksFromChanges([]models.ChangeRecord{
		{Filename: "a.py", Status: models.ChangeModified},
		{Filename: "b.py", Status: models.ChangeRemoved},
		{Filename: "c.py", Status: models.ChangeAdded},
	})
	require.Len(t, hunks, 2)
	assert.Equal(t, "a.py", hunks[0].FilePath)
	assert.Equal(t, "c.py", hunks[1].FilePath)
	assert.Equal(t, 1, hunks[0].StartLine)
}
