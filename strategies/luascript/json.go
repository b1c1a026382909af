package luascript

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// openJSON registers json_decode, handy for credentials that carry a JSON
// document (forwarded claims, cookie payloads).
func openJSON(L *lua.LState) {
	L.SetGlobal("json_decode", L.NewFunction(func(L *lua.LState) int {
		var doc interface{}
		err := json.Unmarshal([]byte(L.CheckString(1)), &doc)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(jsonToLua(L, doc))
		return 1
	}))
}

// jsonToLua only handles what encoding/json produces when decoding into an
// empty interface
func jsonToLua(L *lua.LState, v interface{}) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []interface{}:
		t := L.NewTable()
		for i, item := range v {
			L.RawSetInt(t, i+1, jsonToLua(L, item))
		}
		return t
	case map[string]interface{}:
		t := L.NewTable()
		for k, item := range v {
			L.SetField(t, k, jsonToLua(L, item))
		}
		return t
	}
	return lua.LNil
}
