package server

// PlayerID 房间内按加入顺序分配的编号（"1", "2", ...）
type PlayerID string

// TeamID 队伍标识；空字符串保留给平局
type TeamID string

// Draw 平局哨兵：所有队伍在同一 Tick 内全部出局
const Draw TeamID = ""

// Direction 移动方向（服务端权威解释客户端“意图”）
type Direction int

const (
	DirNone Direction = iota // 尚未下达任何指令，原地不动
	DirUp
	DirDown
	DirLeft
	DirRight
)

// ParseDirection 解析客户端方向符号 u/l/d/r
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "u":
		return DirUp, true
	case "d":
		return DirDown, true
	case "l":
		return DirLeft, true
	case "r":
		return DirRight, true
	default:
		return DirNone, false
	}
}

// Delta 单个 Tick 的位移
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "u"
	case DirDown:
		return "d"
	case DirLeft:
		return "l"
	case DirRight:
		return "r"
	default:
		return ""
	}
}

// Player 房间内的玩家实体（服务端权威状态），生命周期归房间所有
type Player struct {
	ID    PlayerID
	Team  TeamID
	X     int
	Y     int
	Dir   Direction // 当前意图方向，在下一次 Tick 生效
	Alive bool
}

// RosterEntry 广播给客户端的名单条目
type RosterEntry struct {
	ID     PlayerID `json:"id"`
	Team   TeamID   `json:"team"`
	Symbol string   `json:"symbol,omitempty"`
}
