package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinner_NotATerminalLogsOnce(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	p := NewSpinner(f)
	p.Start("Downloading required vision model : llava (this may take a few minutes)")
	p.Stop()
	p.Stop()

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "llava")

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Empty(t, data, "no animation frames outside a terminal")
}
