package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cyclearena/server"
)

// cyclearena 入口：加载配置，启动 HTTP + WebSocket 服务
func main() {
	cfg, err := server.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// zap 日志写入文件（带滚动）并输出到 stderr
	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer server.SyncLogger()

	if err := run(cfg); err != nil {
		server.Log.Errorf("server: %v", err)
		server.SyncLogger()
		os.Exit(1)
	}
}

func run(cfg server.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rooms := server.NewRoomManager(cfg)
	srv := &http.Server{Addr: cfg.Addr(), Handler: server.NewServer(cfg, rooms).Routes()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Log.Infof("cyclearena listening on %s; open http://localhost%s/", cfg.Addr(), cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	// 优雅退出（Ctrl+C）
	g.Go(func() error {
		<-gctx.Done()
		server.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rooms.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
