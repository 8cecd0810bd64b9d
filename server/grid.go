package server

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// EmptyCell 空格子的符号
	EmptyCell = "."
	frameV    = "|"
	frameH    = "—"
)

// noTrail 空格子：尚无任何队伍的轨迹
const noTrail TeamID = ""

// symbolPool 队伍名不能直接作为单字符符号时依次分配
const symbolPool = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Grid 比赛网格；Cells[y][x] 为占据该格的队伍，noTrail 表示空
type Grid struct {
	Width  int
	Height int
	Cells  [][]TeamID

	occupied int
}

// NewGrid 分配全空网格
func NewGrid(width, height int) *Grid {
	cells := make([][]TeamID, height)
	for y := range cells {
		cells[y] = make([]TeamID, width)
	}
	return &Grid{Width: width, Height: height, Cells: cells}
}

// InBounds 坐标是否在网格内
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// Occupied 该格是否已有轨迹；越界视为占据
func (g *Grid) Occupied(x, y int) bool {
	if !g.InBounds(x, y) {
		return true
	}
	return g.Cells[y][x] != noTrail
}

// Mark 写入轨迹；轨迹一经写入不会被清除
func (g *Grid) Mark(x, y int, team TeamID) {
	if g.Cells[y][x] == noTrail {
		g.occupied++
	}
	g.Cells[y][x] = team
}

// At 读取格子
func (g *Grid) At(x, y int) TeamID {
	return g.Cells[y][x]
}

// OccupiedCount 已占据格子数量
func (g *Grid) OccupiedCount() int {
	return g.occupied
}

// Symbols 按队伍符号表渲染为二维符号数组（用于 draw 消息）
func (g *Grid) Symbols(symbols map[TeamID]string) [][]string {
	out := make([][]string, g.Height)
	for y, row := range g.Cells {
		line := make([]string, g.Width)
		for x, team := range row {
			line[x] = cellSymbol(team, symbols)
		}
		out[y] = line
	}
	return out
}

// Render 渲染为带边框的文本（用于比赛录像）
//
//	————
//	|.A|
//	|B.|
//	————
func (g *Grid) Render(symbols map[TeamID]string) string {
	var sb strings.Builder
	border := strings.Repeat(frameH, g.Width+2)
	sb.WriteString(border)
	for _, row := range g.Cells {
		sb.WriteByte('\n')
		sb.WriteString(frameV)
		for _, team := range row {
			sb.WriteString(cellSymbol(team, symbols))
		}
		sb.WriteString(frameV)
	}
	sb.WriteByte('\n')
	sb.WriteString(border)
	return sb.String()
}

func cellSymbol(team TeamID, symbols map[TeamID]string) string {
	if team == noTrail {
		return EmptyCell
	}
	if s, ok := symbols[team]; ok {
		return s
	}
	return "?"
}

// ParseSnapshot 将录像中的一帧文本还原为二维符号数组：
// 去掉边框字符，按行、按字符切分，丢弃空行
func ParseSnapshot(text string) [][]string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, frameV, "")
	text = strings.ReplaceAll(text, frameH, "")

	var grid [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		row := make([]string, 0, utf8.RuneCountInString(line))
		for _, r := range line {
			row = append(row, string(r))
		}
		grid = append(grid, row)
	}
	return grid
}

// AssignSymbols 为名单中的队伍分配单字符符号。
// 队伍按在名单中首次出现的顺序处理；只由名单决定，录像回放时可重新计算
func AssignSymbols(roster []RosterEntry) map[TeamID]string {
	symbols := make(map[TeamID]string)
	used := make(map[string]bool)
	var pending []TeamID

	for _, e := range roster {
		if _, ok := symbols[e.Team]; ok {
			continue
		}
		if s, ok := ownSymbol(e.Team); ok && !used[s] {
			symbols[e.Team] = s
			used[s] = true
			continue
		}
		// 占位，第二轮再分配
		symbols[e.Team] = ""
		pending = append(pending, e.Team)
	}

	pool := []rune(symbolPool)
	next := 0
	for _, team := range pending {
		for next < len(pool) && used[string(pool[next])] {
			next++
		}
		if next >= len(pool) {
			symbols[team] = "?"
			continue
		}
		s := string(pool[next])
		symbols[team] = s
		used[s] = true
	}
	return symbols
}

func ownSymbol(team TeamID) (string, bool) {
	s := string(team)
	if utf8.RuneCountInString(s) != 1 {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsSpace(r) || !unicode.IsPrint(r) {
		return "", false
	}
	switch s {
	case EmptyCell, frameV, frameH, "?":
		return "", false
	}
	return s, true
}
