package board

import (
	"bufio"
	"bytes"
	"embed"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Cell symbols understood by the layout parser.
const (
	Wall  byte = '#'
	Floor byte = '.'
	Start byte = 'S'
	Goal  byte = 'G'
)

const DefaultLayout = "board1"

//go:embed layouts/*.txt
var layouts embed.FS

type Position struct {
	Row int
	Col int
}

// Layout is a parsed board description. Terrain never contains bot symbols;
// bots are kept apart with their starting position.
type Layout struct {
	Name    string
	terrain [][]byte
	bots    map[byte]Position
}

func (l *Layout) Rows() int {
	return len(l.terrain)
}
func (l *Layout) Cols() int {
	return len(l.terrain[0])
}

// BotIDs returns the bot symbols in ascending order.
func (l *Layout) BotIDs() []byte {
	ids := make([]byte, 0, len(l.bots))
	for id := range l.bots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Layouts lists the names of the predefined layouts.
func Layouts() []string {
	entries, err := layouts.ReadDir("layouts")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	sort.Strings(out)
	return out
}

// Load parses one of the predefined layouts.
func Load(name string) (*Layout, error) {
	name = strings.TrimSuffix(name, ".txt")
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, errors.Wrapf(ErrResourceNotFound, "invalid layout name %q", name)
	}
	payload, err := layouts.ReadFile(path.Join("layouts", name+".txt"))
	if err != nil {
		return nil, errors.Wrapf(ErrResourceNotFound, "layout %q", name)
	}
	return Parse(name, bytes.NewReader(payload))
}

// LoadFile parses a layout stored on disk.
func LoadFile(filePath string) (*Layout, error) {
	fd, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrResourceNotFound, "layout file %q", filePath)
		}
		return nil, errors.Wrapf(err, "failed to open layout file %q", filePath)
	}
	defer fd.Close()
	return Parse(strings.TrimSuffix(path.Base(filePath), ".txt"), fd)
}

func isBot(c byte) bool {
	return c >= '1' && c <= '9'
}

// Parse reads a rectangular grid, one row per line. Trailing blank lines are ignored.
func Parse(name string, r io.Reader) (*Layout, error) {
	rows := [][]byte{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		rows = append(rows, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read layout %q", name)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrMalformedLayout, "layout %q is empty", name)
	}
	layout := &Layout{
		Name:    name,
		terrain: make([][]byte, len(rows)),
		bots:    map[byte]Position{},
	}
	width := len(rows[0])
	goals := 0
	for rowIdx, row := range rows {
		if len(row) != width {
			return nil, errors.Wrapf(ErrMalformedLayout, "layout %q: row %d has %d cells, expected %d", name, rowIdx+1, len(row), width)
		}
		terrain := make([]byte, width)
		for colIdx, c := range row {
			switch {
			case c == Wall, c == Floor, c == Start:
				terrain[colIdx] = c
			case c == Goal:
				terrain[colIdx] = c
				goals++
			case isBot(c):
				if _, ok := layout.bots[c]; ok {
					return nil, errors.Wrapf(ErrMalformedLayout, "layout %q: bot %c appears twice", name, c)
				}
				layout.bots[c] = Position{Row: rowIdx, Col: colIdx}
				terrain[colIdx] = Floor
			default:
				return nil, errors.Wrapf(ErrMalformedLayout, "layout %q: unknown symbol %q at %d:%d", name, c, rowIdx+1, colIdx+1)
			}
		}
		layout.terrain[rowIdx] = terrain
	}
	if width == 0 {
		return nil, errors.Wrapf(ErrMalformedLayout, "layout %q has empty rows", name)
	}
	if len(layout.bots) == 0 {
		return nil, errors.Wrapf(ErrMalformedLayout, "layout %q has no bot", name)
	}
	if goals == 0 {
		return nil, errors.Wrapf(ErrMalformedLayout, "layout %q has no goal", name)
	}
	return layout, nil
}
