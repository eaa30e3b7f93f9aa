package validate

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/dragstorm/internal/drag"
	"github.com/dshills/dragstorm/internal/spatial"
)

// ErrRuleClosed is returned when evaluating a closed Lua rule.
var ErrRuleClosed = errors.New("lua rule is closed")

// LuaRule evaluates a user-supplied Lua script as an extra drop rule.
//
// The script must define a global function
//
//	function can_drop(zone, payload)
//	    return true            -- or false, "reason"
//	end
//
// zone and payload are tables carrying the snapshot fields. The LState is
// not goroutine-safe, so every evaluation is serialized through a mutex.
type LuaRule struct {
	mu     sync.Mutex
	state  *lua.LState
	fn     lua.LValue
	closed bool
}

// NewLuaRule compiles the script and looks up its can_drop function.
func NewLuaRule(script string) (*LuaRule, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("compile drop rule: %w", err)
	}

	fn := L.GetGlobal("can_drop")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, errors.New("drop rule script must define can_drop(zone, payload)")
	}

	return &LuaRule{state: L, fn: fn}, nil
}

// Evaluate implements Rule.
func (r *LuaRule) Evaluate(zone spatial.Zone, payload *drag.Payload) (bool, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, "", ErrRuleClosed
	}

	L := r.state
	if err := L.CallByParam(lua.P{
		Fn:      r.fn,
		NRet:    2,
		Protect: true,
	}, r.zoneTable(zone), r.payloadTable(payload)); err != nil {
		return false, "", fmt.Errorf("drop rule: %w", err)
	}

	reason := L.Get(-1)
	ok := L.Get(-2)
	L.Pop(2)

	allowed := lua.LVAsBool(ok)
	msg := ""
	if s, isString := reason.(lua.LString); isString {
		msg = string(s)
	}
	return allowed, msg, nil
}

// Close releases the Lua state. Further evaluations error (and the
// validator fails open on rule errors).
func (r *LuaRule) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.state.Close()
		r.closed = true
	}
}

func (r *LuaRule) zoneTable(zone spatial.Zone) *lua.LTable {
	L := r.state
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(zone.ID))
	L.SetField(t, "kind", lua.LString(zone.Constraints.Kind.String()))
	L.SetField(t, "depth", lua.LNumber(zone.Depth))
	L.SetField(t, "x", lua.LNumber(zone.Bounds.X))
	L.SetField(t, "y", lua.LNumber(zone.Bounds.Y))
	L.SetField(t, "width", lua.LNumber(zone.Bounds.Width))
	L.SetField(t, "height", lua.LNumber(zone.Bounds.Height))

	accepts := L.NewTable()
	for i, a := range zone.Accepts {
		L.RawSetInt(accepts, i+1, lua.LString(a))
	}
	L.SetField(t, "accepts", accepts)
	return t
}

func (r *LuaRule) payloadTable(payload *drag.Payload) *lua.LTable {
	L := r.state
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(payload.ID()))
	L.SetField(t, "type", lua.LString(payload.Type()))
	L.SetField(t, "name", lua.LString(payload.Name()))
	L.SetField(t, "category", lua.LString(payload.Category()))

	props := L.NewTable()
	for k, v := range payload.Properties() {
		L.SetField(props, k, lua.LString(v))
	}
	L.SetField(t, "properties", props)
	return t
}
