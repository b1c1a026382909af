package luascript

import (
	"net/http"

	lua "github.com/yuin/gopher-lua"
)

// newSandbox returns a state with just enough libs to inspect requests.
// Scripts cannot load modules or touch the filesystem.
func newSandbox() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, pair := range []struct {
		n string
		f lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(pair.f),
			NRet:    0,
			Protect: true,
		}, lua.LString(pair.n)); err != nil {
			L.Close()
			return nil, err
		}
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	openJSON(L)
	return L, nil
}

// reqToLua exposes a read-only view of req
func reqToLua(L *lua.LState, req *http.Request) lua.LValue {
	tbl := L.NewTable()
	L.SetField(tbl, "method", lua.LString(req.Method))
	L.SetField(tbl, "path", lua.LString(req.URL.Path))
	L.SetField(tbl, "host", lua.LString(req.Host))
	L.SetField(tbl, "remote_addr", lua.LString(req.RemoteAddr))
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"header": func(L *lua.LState) int {
			L.Push(lua.LString(req.Header.Get(L.CheckString(1))))
			return 1
		},
		"query": func(L *lua.LState) int {
			L.Push(lua.LString(req.URL.Query().Get(L.CheckString(1))))
			return 1
		},
		"cookie": func(L *lua.LState) int {
			c, err := req.Cookie(L.CheckString(1))
			if err != nil {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(c.Value))
			return 1
		},
	})
	return tbl
}
