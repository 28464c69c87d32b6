// Package http 提供预测服务的HTTP接口
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kidneyserve/ml"
	"kidneyserve/monitoring"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           5000,
		Timeout:        30 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// Service 处理器依赖；Metrics 和 Fallbacks 可以为 nil
type Service struct {
	Predictor *ml.Predictor
	Bundle    *ml.Bundle
	Metrics   *monitoring.MetricsCollector
	Fallbacks *monitoring.FallbackLog
	Logger    *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, svc *Service) *Server {
	logger := svc.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewHandler(config, svc),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout + time.Second,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: logger,
	}
}

// NewHandler 注册路由并包装中间件链
func NewHandler(config ServerConfig, svc *Service) http.Handler {
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux, svc)

	chain := Chain(
		RecoveryMiddleware(svc.Logger),        // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(svc.Logger),          // 2. 日志中间件
		SecurityHeadersMiddleware,             // 3. 安全头中间件
		CORSMiddleware(config.AllowedOrigins), // 4. CORS中间件
		TimeoutMiddleware(config.Timeout),     // 5. 超时中间件
		RequestSizeMiddleware(config.MaxBodyBytes),
	)
	return chain(mux)
}

// Start 启动服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器，等待进行中的请求完成
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down http server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
