package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = defaultReadTimeout
	defaultDrainTimeout = 30 * time.Second
	inheritEnvKey       = "POSTUREMON_INHERIT_FD"
	inheritEnvPair      = inheritEnvKey + "=1"
	inheritedListenerFD = 3
)

// ShutdownHook releases a resource after the HTTP server has drained.
type ShutdownHook func(ctx context.Context) error

// Server is an http.Server that drains on SIGINT/SIGTERM and hands its
// listener to a fresh copy of the binary on SIGUSR2.
type Server struct {
	*http.Server

	listener  net.Listener
	inherited bool
	signals   chan os.Signal
	done      chan struct{}
	hooks     []ShutdownHook
	stopOnce  sync.Once
}

// NewServer creates a Server with timeouts and handler. Hooks run in order once the server stops.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, hooks ...ShutdownHook) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		inherited: os.Getenv(inheritEnvKey) != "",
		signals:   make(chan os.Signal, 1),
		done:      make(chan struct{}),
		hooks:     hooks,
	}
}

// ListenAndServe blocks until the server has been stopped and every hook has run.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.listen(addr)
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve runs on ln until Stop is called or a shutdown signal arrives.
func (srv *Server) Serve(ln net.Listener) error {
	srv.listener = ln
	signal.Notify(srv.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(srv.signals)
	go srv.watchSignals()

	Logger.Info("http server listening", zap.String("addr", ln.Addr().String()), zap.Bool("inherited", srv.inherited))
	if err := srv.Server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-srv.done
	return nil
}

// Stop drains in-flight requests, then runs the shutdown hooks. Later calls are no-ops.
func (srv *Server) Stop() {
	srv.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultDrainTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			Logger.Error("http server shutdown failed", zap.Error(err))
		} else {
			Logger.Info("http server drained")
		}
		for i, hook := range srv.hooks {
			if err := hook(ctx); err != nil {
				Logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
			}
		}
		close(srv.done)
	})
}

func (srv *Server) listen(addr string) (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(inheritedListenerFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) watchSignals() {
	for {
		select {
		case <-srv.done:
			return
		case sig := <-srv.signals:
			switch sig {
			case syscall.SIGUSR2:
				pid, err := srv.spawnChild()
				if err != nil {
					Logger.Error("restart failed, still serving", zap.Error(err))
					continue
				}
				Logger.Info("restarted, draining old process", zap.Int("child_pid", pid))
			default:
				Logger.Info("shutting down", zap.String("signal", sig.String()))
			}
			go srv.Stop()
		}
	}
}

// spawnChild re-executes the binary with the listening socket as fd 3.
func (srv *Server) spawnChild() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not a TCP listener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritEnvPair {
			env = append(env, e)
		}
	}
	env = append(env, inheritEnvPair)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("fork exec: %w", err)
	}
	return pid, nil
}

// GraceServer starts an HTTP server with graceful capabilities.
func GraceServer(addr string, handler http.Handler, hooks ...ShutdownHook) error {
	return NewServer(addr, handler, defaultReadTimeout, defaultWriteTimeout, hooks...).ListenAndServe()
}
