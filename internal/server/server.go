// Package server answers newline-delimited JSON-RPC requests so an editor
// can keep one orchestrator, and one runner subprocess, alive across
// requests.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"dtp/internal/domain"
)

// Service is the orchestrator behind the server
type Service interface {
	Discover(ctx context.Context, sourcePath string) domain.DiscoveryResult
	RunTests(ctx context.Context, req domain.RunRequest) (string, error)
	DebugTests(ctx context.Context, req domain.DebugRequest) domain.DebugResult
	ListTestProjects(ctx context.Context, root string) ([]string, error)
	ClearCache()
}

const maxRequestSize = 4 * 1024 * 1024

// Server reads one request per line and writes one response per line.
// Requests are handled concurrently; responses are written as they complete.
type Server struct {
	svc Service
	log *slog.Logger

	writeMu sync.Mutex
	enc     *json.Encoder
}

// New creates a Server writing responses to out
func New(svc Service, out io.Writer, log *slog.Logger) *Server {
	return &Server{svc: svc, log: log, enc: json.NewEncoder(out)}
}

// Serve handles requests from in until it is exhausted or ctx is done, then
// waits for the requests in flight.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxRequestSize)

	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return fmt.Errorf("read requests: %w", err)
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.write(s.handle(ctx, line))
			}()
		}
	}
}

func (s *Server) handle(ctx context.Context, line []byte) *RPCRes {
	var req RPCReq
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Debug("malformed request", "error", err)
		return NewRPCErrorRes(nil, ErrParseErr)
	}
	if req.JSONRPC != JSONRPCVersion {
		return NewRPCErrorRes(req.ID, ErrInvalidRequest("invalid jsonrpc version"))
	}
	if req.Method == "" {
		return NewRPCErrorRes(req.ID, ErrInvalidRequest("no method specified"))
	}

	log := s.log.With("method", req.Method)
	log.Debug("handling request")
	result, rpcErr := s.dispatch(ctx, req)
	if rpcErr != nil {
		log.Debug("request failed", "error", rpcErr.Message)
		return NewRPCErrorRes(req.ID, rpcErr)
	}
	return NewRPCRes(req.ID, result)
}

func (s *Server) dispatch(ctx context.Context, req RPCReq) (interface{}, *RPCErr) {
	switch req.Method {
	case MethodDiscover:
		var p DiscoverParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if p.Path == "" {
			return nil, ErrInvalidParams("path is required")
		}
		return s.svc.Discover(ctx, p.Path), nil

	case MethodRunTests:
		var p domain.RunRequest
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, ErrInvalidParams(err.Error())
		}
		out, err := s.svc.RunTests(ctx, p)
		if err != nil {
			return nil, ErrInternal(err.Error())
		}
		return RunResult{OutputPath: out}, nil

	case MethodDebugTests:
		var p domain.DebugRequest
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, ErrInvalidParams(err.Error())
		}
		return s.svc.DebugTests(ctx, p), nil

	case MethodProjects:
		var p ProjectsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		projects, err := s.svc.ListTestProjects(ctx, p.Root)
		if err != nil {
			return nil, ErrInternal(err.Error())
		}
		if projects == nil {
			projects = []string{}
		}
		return projects, nil

	case MethodClearCache:
		s.svc.ClearCache()
		return true, nil
	}
	return nil, ErrMethodNotFound
}

func decodeParams(raw json.RawMessage, v interface{}) *RPCErr {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidParams(err.Error())
	}
	return nil
}

func (s *Server) write(res *RPCRes) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(res); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}
