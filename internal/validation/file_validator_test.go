package validation

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietValidator() *FileValidator {
	return NewFileValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0644))
	return path
}

func TestValidateWorkbook(t *testing.T) {
	dir := t.TempDir()
	v := quietValidator()

	tests := []struct {
		name        string
		path        string
		wantErr     bool
		notExist    bool
		notWorkbook bool
	}{
		{name: "xlsx", path: touch(t, dir, "films.xlsx")},
		{name: "upper case xlsm", path: touch(t, dir, "FILMS.XLSM")},
		{name: "missing", path: filepath.Join(dir, "absent.xlsx"), wantErr: true, notExist: true},
		{name: "directory", path: dir, wantErr: true},
		{name: "csv", path: touch(t, dir, "films.csv"), wantErr: true, notWorkbook: true},
		{name: "legacy xls", path: touch(t, dir, "films.xls"), wantErr: true, notWorkbook: true},
		{name: "lock file", path: touch(t, dir, "~$films.xlsx"), wantErr: true, notWorkbook: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateWorkbook(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.notExist, errors.Is(err, os.ErrNotExist))
			assert.Equal(t, tt.notWorkbook, errors.Is(err, ErrNotWorkbook))
		})
	}
}

func TestValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)

	nested := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, v.ValidateOutputDirectory(nested))
	entries, err := os.ReadDir(nested)
	require.NoError(t, err)
	assert.Empty(t, entries)

	blocker := touch(t, t.TempDir(), "file")
	assert.Error(t, v.ValidateOutputDirectory(blocker))
}
