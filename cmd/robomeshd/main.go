// Package main 实现 robomeshd，RoboMesh 的独立路由器进程
//
// 路由器在会话之间转发数据样本与存活令牌，是 ws 模式下所有
// 会话的汇聚点：会话连上同一个路由器即可互相发现与通信。
//
// 使用方法:
//
//	robomeshd -config router.json5
//	robomeshd -listen 0.0.0.0:7447 -metrics-listen 127.0.0.1:9100
//
// 未指定 -config 时依次尝试 ROBOMESH_ROUTER_CONFIG 环境变量
// 与内置默认值（监听 127.0.0.1:7447）。命令行参数覆盖配置文件。
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/internal/router"
	"github.com/robomesh/go-robomesh/internal/transport/ws"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
)

var logger = log.Logger("robomeshd")

// shutdownTimeout 收到信号后等待在途请求排空的时长
const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "robomeshd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 解析命令行参数
	configPath := flag.String("config", "", "配置文件路径（JSONC 格式）")
	listen := flag.String("listen", "", "WebSocket 监听地址，覆盖配置文件")
	metricsListen := flag.String("metrics-listen", "", "指标 HTTP 监听地址，覆盖配置文件")
	flag.Parse()

	cfg, err := config.LoadRouterConfig(*configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *metricsListen != "" {
		cfg.MetricsListen = *metricsListen
	}

	if err := setupLogging(&cfg.Log); err != nil {
		return err
	}

	enclaveKey, err := loadEnclaveKey(cfg.EnclaveKeyFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获中断信号
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalCh
		logger.Info("收到信号，准备关闭", "signal", sig.String())
		cancel()
	}()

	// ════════════════════════════════════════════════════════════════════════
	// 路由核心与 WebSocket 入口
	// ════════════════════════════════════════════════════════════════════════
	broker := router.NewBroker()
	defer broker.Close()

	handler := ws.NewServer(broker, ws.ServerOptions{
		EnclaveKey:    enclaveKey,
		MaxFrameBytes: cfg.MaxFrameBytes,
	})

	// 先建监听器，端口冲突等错误在启动阶段即暴露
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", cfg.Listen, err)
	}

	// WebSocket 连接由握手与心跳自行管理读写期限，
	// 外层 HTTP 服务器只约束升级请求的头部读取。
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("路由器已启动",
			"listen", listener.Addr().String(),
			"max_frame_bytes", cfg.MaxFrameBytes,
			"enclave_auth", len(enclaveKey) > 0)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("路由服务异常退出: %w", err)
		}
		return nil
	})

	// ════════════════════════════════════════════════════════════════════════
	// 指标服务（可选）
	// ════════════════════════════════════════════════════════════════════════
	var metricsServer *http.Server
	if cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		if err := broker.RegisterMetrics(reg); err != nil {
			return fmt.Errorf("注册路由指标失败: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		metricsListener, err := net.Listen("tcp", cfg.MetricsListen)
		if err != nil {
			return fmt.Errorf("监听 %s 失败: %w", cfg.MetricsListen, err)
		}
		metricsServer = &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		g.Go(func() error {
			logger.Info("指标服务已启动", "listen", metricsListener.Addr().String())
			if err := metricsServer.Serve(metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("指标服务异常退出: %w", err)
			}
			return nil
		})
	}

	// ════════════════════════════════════════════════════════════════════════
	// 关闭协调
	// ════════════════════════════════════════════════════════════════════════
	g.Go(func() error {
		<-gctx.Done()

		shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutCancel()

		// Shutdown 只排空普通 HTTP 请求，已升级的 WebSocket 连接
		// 由随后的 broker.Close 统一断开。
		err := server.Shutdown(shutCtx)
		if metricsServer != nil {
			err = multierr.Append(err, metricsServer.Shutdown(shutCtx))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("路由器已关闭")
	return nil
}

// setupLogging 配置日志级别与输出目标
//
// 日志文件以追加模式打开，在进程生命周期内持续使用。
func setupLogging(cfg *config.LogConfig) error {
	level := log.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = log.LevelDebug
	case "warn":
		level = log.LevelWarn
	case "error":
		level = log.LevelError
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		log.SetOutputWithLevel(file, level)
		return nil
	}

	log.SetLevel(level)
	return nil
}

// loadEnclaveKey 读取 enclave 预共享密钥文件
//
// 路径为空时返回 nil，表示路由器不校验握手令牌。
// 文件内容去除首尾空白后作为密钥，两端需保持一致。
func loadEnclaveKey(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 enclave 密钥文件失败: %w", err)
	}
	key := bytes.TrimSpace(raw)
	if len(key) == 0 {
		return nil, fmt.Errorf("enclave 密钥文件为空: %s", path)
	}
	return key, nil
}
