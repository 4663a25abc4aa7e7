package board

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayouts(t *testing.T) {
	names := Layouts()
	require.Equal(t, []string{"board1", "board2", "board3", "board4", "board5"}, names)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			layout, err := Load(name)
			require.NoError(t, err)
			assert.Equal(t, name, layout.Name)
			assert.NotEmpty(t, layout.BotIDs())
			for _, row := range layout.terrain {
				assert.Equal(t, layout.Cols(), len(row))
			}
		})
	}
	t.Run("with extension", func(t *testing.T) {
		layout, err := Load("board2.txt")
		require.NoError(t, err)
		assert.Equal(t, "board2", layout.Name)
	})
}

func TestLoadMissing(t *testing.T) {
	for _, name := range []string{"board9", "", "../board1", "layouts/board1"} {
		_, err := Load(name)
		require.Error(t, err)
		assert.Equal(t, ErrResourceNotFound, errors.Cause(err), name)
	}
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Equal(t, ErrResourceNotFound, errors.Cause(err))
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "custom.txt")
	require.NoError(t, os.WriteFile(p, []byte("#####\n#1.G#\n#####\n"), 0600))
	layout, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "custom", layout.Name)
	assert.Equal(t, 3, layout.Rows())
	assert.Equal(t, 5, layout.Cols())
	assert.Equal(t, Position{Row: 1, Col: 1}, layout.bots['1'])
	assert.Equal(t, Floor, layout.terrain[1][1])
}

func TestParse(t *testing.T) {
	t.Run("trailing blank lines and CRLF", func(t *testing.T) {
		layout, err := Parse("crlf", strings.NewReader("###\r\n#1G\r\n\r\n\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, layout.Rows())
		assert.Equal(t, 3, layout.Cols())
	})
	malformed := map[string]string{
		"empty":         "",
		"blank":         "\n\n",
		"ragged":        "####\n#1G\n####\n",
		"inner blank":   "###\n\n#1G\n",
		"unknown":       "####\n#1xG\n####\n",
		"no bot":        "###\n#.G\n###\n",
		"no goal":       "###\n#1.\n###\n",
		"duplicate bot": "####\n#11G\n####\n",
	}
	for name, payload := range malformed {
		t.Run(name, func(t *testing.T) {
			layout, err := Parse(name, strings.NewReader(payload))
			require.Error(t, err)
			assert.Nil(t, layout)
			assert.Equal(t, ErrMalformedLayout, errors.Cause(err))
		})
	}
}
