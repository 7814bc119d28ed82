package app

import (
	"context"
	"sync"

	"github.com/mselser95/polymarket-hedge/pkg/config"
	"github.com/mselser95/polymarket-hedge/pkg/healthprobe"
	"github.com/mselser95/polymarket-hedge/pkg/httpserver"
	"github.com/mselser95/polymarket-hedge/pkg/lock"
	"github.com/mselser95/polymarket-hedge/pkg/wallet"
	"github.com/mselser95/polymarket-hedge/pkg/websocket"
	"go.uber.org/zap"
)

// App is the hedge API server: the execution stack plus its HTTP surface.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	stack         *Stack
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	hub           *websocket.Hub
	locker        lock.Locker
	tracker       *wallet.Tracker
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// Password unlocks the session at startup when set.
	Password string
}
