package server

import (
	"encoding/json"
)

const JSONRPCVersion = "2.0"

// Methods served over stdin/stdout
const (
	MethodDiscover   = "discover"
	MethodRunTests   = "run-tests"
	MethodDebugTests = "debug-tests"
	MethodProjects   = "projects"
	MethodClearCache = "clear-cache"
)

type RPCReq struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type RPCRes struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCErr         `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type RPCErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r *RPCErr) Error() string {
	return r.Message
}

var (
	ErrParseErr = &RPCErr{
		Code:    -32700,
		Message: "parse error",
	}
	ErrInvalidRequest = func(msg string) *RPCErr {
		return &RPCErr{
			Code:    -32600,
			Message: msg,
		}
	}
	ErrMethodNotFound = &RPCErr{
		Code:    -32601,
		Message: "method not found",
	}
	ErrInvalidParams = func(msg string) *RPCErr {
		return &RPCErr{
			Code:    -32602,
			Message: msg,
		}
	}
	ErrInternal = func(msg string) *RPCErr {
		return &RPCErr{
			Code:    -32603,
			Message: msg,
		}
	}
)

// DiscoverParams are the params of a discover request
type DiscoverParams struct {
	Path string `json:"path"`
}

// ProjectsParams are the params of a projects request
type ProjectsParams struct {
	Root string `json:"root,omitempty"`
}

// RunResult is the result of a run-tests request
type RunResult struct {
	OutputPath string `json:"output_path"`
}

func NewRPCErrorRes(id json.RawMessage, err *RPCErr) *RPCRes {
	return &RPCRes{
		JSONRPC: JSONRPCVersion,
		Error:   err,
		ID:      id,
	}
}

func NewRPCRes(id json.RawMessage, result interface{}) *RPCRes {
	return &RPCRes{
		JSONRPC: JSONRPCVersion,
		Result:  result,
		ID:      id,
	}
}
