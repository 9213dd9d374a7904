package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnemolab/mnemo/internal/metadatalog"
	"github.com/mnemolab/mnemo/internal/metadatalog/logtest"
)

func TestSQLiteLogConformance(t *testing.T) {
	logtest.Run(t, func(t *testing.T) metadatalog.Log {
		s, err := New(filepath.Join(t.TempDir(), "mnemo.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
