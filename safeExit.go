package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var SafeExitInst *SafeExit

// InitSafeExit 开始安全退出任务. The first signal cancels Context and runs
// the registered funcs; a second one exits immediately.
func InitSafeExit() {
	ctx, cancel := context.WithCancel(context.Background())
	SafeExitInst = &SafeExit{ctx: ctx, cancel: cancel}
	go SafeExitInst.ListenSignal()
}

type SafeExit struct {
	funcs  []func()
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	once   sync.Once
}

// Context is cancelled on the first shutdown signal.
func (s *SafeExit) Context() context.Context {
	return s.ctx
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

// exit cancels the run and calls the registered funcs in reverse order.
func (s *SafeExit) exit() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(s.funcs) - 1; i >= 0; i-- {
			s.funcs[i]()
		}
	})
}

func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	n := 0
	for sig := range sigs {
		n++
		if n > 1 {
			log.Warnf("received %s again, exiting now", sig)
			os.Exit(130)
		}
		log.Warnf("received %s, stopping after in-flight work, send again to force", sig)
		s.exit()
	}
}
