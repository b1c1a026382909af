// Package luascript implements strategies written in Lua.
//
// A script must define a global `authenticate(req)` function and may define
// `applicable(req)`. authenticate returns either a table describing the
// principal (`{subject = "...", name = "...", roles = {...}}`), a plain
// string used as the subject, or `nil, "reason"` when the caller cannot be
// authenticated.
//
// `req` has the fields method, path, host and remote_addr plus the
// functions req.header(name), req.query(name) and req.cookie(name).
// json_decode(text) turns a JSON document into a table, or returns
// nil and the decoding error.
//
// Scripts are compiled once; each call runs in a fresh state so requests
// never share Lua globals.
package luascript

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/andrebq/chainmail/chain"
	"github.com/andrebq/chainmail/internal/logutil"
	"github.com/andrebq/chainmail/principal"
	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

type (
	Script struct {
		name          string
		proto         *lua.FunctionProto
		hasApplicable bool
		timeout       time.Duration
	}

	InvalidScript struct {
		Name  string
		cause error
	}
)

var _ chain.Strategy[principal.Principal] = (*Script)(nil)

func (i InvalidScript) Error() string {
	return fmt.Sprintf("script %v is not a valid strategy, cause %v", i.Name, i.cause)
}

func (i InvalidScript) Unwrap() error {
	return i.cause
}

func Load(file string) (*Script, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read script %v, cause %w", file, err)
	}
	return Compile(file, string(buf))
}

// Compile parses code and checks that it defines authenticate.
func Compile(name, code string) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(code), name)
	if err != nil {
		return nil, InvalidScript{Name: name, cause: err}
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, InvalidScript{Name: name, cause: err}
	}
	s := &Script{name: name, proto: proto}
	L, err := s.load()
	if err != nil {
		return nil, InvalidScript{Name: name, cause: err}
	}
	defer L.Close()
	if L.GetGlobal("authenticate").Type() != lua.LTFunction {
		return nil, InvalidScript{Name: name, cause: fmt.Errorf("missing authenticate function")}
	}
	s.hasApplicable = L.GetGlobal("applicable").Type() == lua.LTFunction
	return s, nil
}

// WithTimeout returns a copy of s where every call to applicable or
// authenticate is aborted after d. Zero means the request context is the
// only limit.
func (s *Script) WithTimeout(d time.Duration) *Script {
	cp := *s
	cp.timeout = d
	return &cp
}

func (s *Script) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Script) load() (*lua.LState, error) {
	L, err := newSandbox()
	if err != nil {
		return nil, err
	}
	L.Push(L.NewFunctionFromProto(s.proto))
	err = L.PCall(0, lua.MultRet, nil)
	if err != nil {
		L.Close()
		return nil, err
	}
	return L, nil
}

func (s *Script) Applicable(r *http.Request) bool {
	if !s.hasApplicable {
		return true
	}
	L, err := s.load()
	if err != nil {
		return false
	}
	defer L.Close()
	ctx, cancel := s.callContext(r)
	defer cancel()
	L.SetContext(ctx)
	err = L.CallByParam(lua.P{Fn: L.GetGlobal("applicable"), NRet: 1, Protect: true}, reqToLua(L, r))
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Err(err).Str("script", s.name).Msg("Applicable check failed")
		return false
	}
	return lua.LVAsBool(L.Get(-1))
}

func (s *Script) Authenticate(r *http.Request) (principal.Principal, error) {
	var p principal.Principal
	L, err := s.load()
	if err != nil {
		return p, chain.Fail("unable to load script %v: %v", s.name, err)
	}
	defer L.Close()
	ctx, cancel := s.callContext(r)
	defer cancel()
	L.SetContext(ctx)
	err = L.CallByParam(lua.P{Fn: L.GetGlobal("authenticate"), NRet: 2, Protect: true}, reqToLua(L, r))
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Err(err).Str("script", s.name).Msg("Script raised an error")
		return p, chain.Fail("script %v raised an error", s.name)
	}
	ret, reason := L.Get(-2), L.Get(-1)
	switch v := ret.(type) {
	case *lua.LTable:
		err = gluamapper.Map(v, &p)
		if err != nil {
			return principal.Principal{}, chain.Fail("script %v returned an invalid principal: %v", s.name, err)
		}
	case lua.LString:
		p.Subject = string(v)
	default:
		if reason == lua.LNil {
			return p, chain.Fail("rejected by %v", s.name)
		}
		return p, chain.Fail("%v", reason.String())
	}
	if p.Subject == "" {
		return principal.Principal{}, chain.Fail("script %v returned a principal without subject", s.name)
	}
	return p, nil
}
