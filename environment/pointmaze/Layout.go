package pointmaze

import (
	"fmt"
	"strings"
)

// Layout is a maze floor plan
type Layout int

const (
	Open Layout = iota
	UMaze
	Medium
	Large
)

// Maze floor plans. Rows are separated by '\', '#' marks a wall, 'O' an
// empty cell and 'G' the cell of the fixed goal in single-goal mazes.
const (
	openMaze = `#######\` +
		`#OOOOO#\` +
		`#OOGOO#\` +
		`#OOOOO#\` +
		`#######`

	uMaze = `#####\` +
		`#GOO#\` +
		`###O#\` +
		`#OOO#\` +
		`#####`

	mediumMaze = `########\` +
		`#OO##OO#\` +
		`#OO#OOO#\` +
		`##OOO###\` +
		`#OO#OOO#\` +
		`#O#OO#O#\` +
		`#OOO#OG#\` +
		`########`

	largeMaze = `############\` +
		`#OOOO#OOOOO#\` +
		`#O##O#O#O#O#\` +
		`#OOOOOO#OOO#\` +
		`#O####O###O#\` +
		`#OO#O#OOOOO#\` +
		`##O#O#O#O###\` +
		`#OO#OOO#OGO#\` +
		`############`
)

var layouts = map[Layout]struct {
	name     string
	plan     string
	maxSteps int
}{
	Open:   {"open", openMaze, 150},
	UMaze:  {"umaze", uMaze, 300},
	Medium: {"medium", mediumMaze, 600},
	Large:  {"large", largeMaze, 800},
}

func (l Layout) String() string {
	if info, ok := layouts[l]; ok {
		return info.name
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// MaxEpisodeSteps returns the step limit of episodes in the maze
func (l Layout) MaxEpisodeSteps() int {
	return layouts[l].maxSteps
}

// ParseLayout returns the Layout with the given name
func ParseLayout(name string) (Layout, error) {
	for l, info := range layouts {
		if info.name == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("parseLayout: unknown maze layout %q", name)
}

// cell is a grid position. Row i maps to world x and column j to world
// y, with cell centres at integer coordinates.
type cell struct {
	i, j int
}

// grid is a parsed floor plan
type grid struct {
	rows, cols int
	walls      []cell
	empty      []cell
}

func parse(plan string) (grid, error) {
	lines := strings.Split(plan, `\`)
	g := grid{rows: len(lines)}
	for i, line := range lines {
		if i == 0 {
			g.cols = len(line)
		} else if len(line) != g.cols {
			return grid{}, fmt.Errorf("parse: row %v has %v columns, "+
				"expected %v", i, len(line), g.cols)
		}

		for j, c := range line {
			switch c {
			case '#':
				g.walls = append(g.walls, cell{i, j})
			case 'O', 'G':
				g.empty = append(g.empty, cell{i, j})
			default:
				return grid{}, fmt.Errorf("parse: unknown cell %q at (%v, "+
					"%v)", c, i, j)
			}
		}
	}
	if len(g.empty) == 0 {
		return grid{}, fmt.Errorf("parse: maze has no empty cells")
	}
	return g, nil
}
