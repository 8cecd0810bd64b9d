package server

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRoomID 客户端未指定房间时使用的房间名
const DefaultRoomID = "null"

// TeamsConfig 每个房间的队伍数量与每队人数
type TeamsConfig struct {
	Amount int `json:"amount"`
	Size   int `json:"size"`
}

// GridConfig 网格尺寸（单元格）
type GridConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DelayConfig 开局等待与 Tick 间隔
type DelayConfig struct {
	Initial time.Duration `json:"initial"`
	Default time.Duration `json:"default"`
}

// Config 服务端调参快照，启动后只读
type Config struct {
	Port     int         `json:"port"`
	Teams    TeamsConfig `json:"teams"`
	Grid     GridConfig  `json:"grid"`
	Delay    DelayConfig `json:"delay"`
	SaveDir  string      `json:"saveDir"`
	WebDir   string      `json:"webDir"`
	LogFile  string      `json:"logFile"`
	LogLevel string      `json:"logLevel"`
}

// DefaultConfig 默认配置：2 队 × 1 人，50×50 网格，100ms 一个 Tick
func DefaultConfig() Config {
	return Config{
		Port:     3000,
		Teams:    TeamsConfig{Amount: 2, Size: 1},
		Grid:     GridConfig{Width: 50, Height: 50},
		Delay:    DelayConfig{Initial: 3 * time.Second, Default: 100 * time.Millisecond},
		SaveDir:  "saves",
		WebDir:   "web",
		LogFile:  "app.log",
		LogLevel: "debug",
	}
}

// Addr 监听地址
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate 保证出生点策略能为所有玩家分配互不重叠的格子
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Teams.Amount < 1 {
		errs = append(errs, errors.New("teams.amount must be >= 1"))
	}
	if c.Teams.Size < 1 {
		errs = append(errs, errors.New("teams.size must be >= 1"))
	}
	if c.Grid.Width < 2 {
		errs = append(errs, errors.New("grid.width must be >= 2"))
	}
	perWall := (c.Teams.Amount + 1) / 2 * c.Teams.Size
	if c.Grid.Height <= perWall {
		errs = append(errs, fmt.Errorf("grid.height %d cannot fit %d players per wall", c.Grid.Height, perWall))
	}
	if c.Delay.Default <= 0 {
		errs = append(errs, errors.New("delay.default must be positive"))
	}
	if c.Delay.Initial < 0 {
		errs = append(errs, errors.New("delay.initial must not be negative"))
	}
	if c.SaveDir == "" {
		errs = append(errs, errors.New("saveDir must not be empty"))
	}
	return errors.Join(errs...)
}

// LoadConfig 解析命令行参数；默认值可由环境变量（及 .env 文件）覆盖。
// 优先级：命令行 > 环境变量 > .env > DefaultConfig
func LoadConfig(args []string) (Config, error) {
	// .env 缺失是正常情况
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("cyclearena", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	fs.IntVar(&cfg.Teams.Amount, "teams.amount", cfg.Teams.Amount, "teams per room")
	fs.IntVar(&cfg.Teams.Size, "teams.size", cfg.Teams.Size, "players per team")
	fs.IntVar(&cfg.Grid.Width, "grid.width", cfg.Grid.Width, "grid width in cells")
	fs.IntVar(&cfg.Grid.Height, "grid.height", cfg.Grid.Height, "grid height in cells")
	fs.DurationVar(&cfg.Delay.Initial, "delay.initial", cfg.Delay.Initial, "delay before the first tick")
	fs.DurationVar(&cfg.Delay.Default, "delay.default", cfg.Delay.Default, "delay between ticks")
	fs.StringVar(&cfg.SaveDir, "saves", cfg.SaveDir, "directory for recorded matches")
	fs.StringVar(&cfg.WebDir, "web", cfg.WebDir, "directory with index.html, room.html and public/")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path (rotated)")
	fs.StringVar(&cfg.LogLevel, "log.level", cfg.LogLevel, "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

const envPrefix = "CYCLEARENA_"

func applyEnv(cfg *Config) error {
	ints := map[string]*int{
		"PORT":         &cfg.Port,
		"TEAMS_AMOUNT": &cfg.Teams.Amount,
		"TEAMS_SIZE":   &cfg.Teams.Size,
		"GRID_WIDTH":   &cfg.Grid.Width,
		"GRID_HEIGHT":  &cfg.Grid.Height,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	// 延迟既接受 "250ms" 也接受纯毫秒数
	durations := map[string]*time.Duration{
		"DELAY_INITIAL": &cfg.Delay.Initial,
		"DELAY_DEFAULT": &cfg.Delay.Default,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		if ms, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(ms) * time.Millisecond
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	strs := map[string]*string{
		"SAVE_DIR":  &cfg.SaveDir,
		"WEB_DIR":   &cfg.WebDir,
		"LOG_FILE":  &cfg.LogFile,
		"LOG_LEVEL": &cfg.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	return nil
}
