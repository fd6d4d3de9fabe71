package lua

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	glua "github.com/yuin/gopher-lua"
)

// LogModule exposes zerolog to scripts
type LogModule struct{}

// NewLogModule creates a new log module
func NewLogModule() *LogModule {
	return &LogModule{}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *glua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.emit(zerolog.DebugLevel)))
	L.SetField(mod, "info", L.NewFunction(m.emit(zerolog.InfoLevel)))
	L.SetField(mod, "warn", L.NewFunction(m.emit(zerolog.WarnLevel)))
	L.SetField(mod, "error", L.NewFunction(m.emit(zerolog.ErrorLevel)))

	L.Push(mod)
	return 1
}

func (m *LogModule) emit(level zerolog.Level) glua.LGFunction {
	return func(L *glua.LState) int {
		msg := L.CheckString(1)

		event := log.WithLevel(level).Str("source", "lua")
		if tbl, ok := L.Get(2).(*glua.LTable); ok {
			tbl.ForEach(func(key, value glua.LValue) {
				event = event.Interface(glua.LVAsString(key), toGo(value))
			})
		}
		event.Msg(msg)

		return 0
	}
}

// toGo converts a Lua value to a Go value for log fields
func toGo(v glua.LValue) any {
	switch val := v.(type) {
	case glua.LString:
		return string(val)
	case glua.LNumber:
		return float64(val)
	case glua.LBool:
		return bool(val)
	case *glua.LTable:
		obj := make(map[string]any)
		val.ForEach(func(k, v glua.LValue) {
			obj[glua.LVAsString(k)] = toGo(v)
		})
		return obj
	case *glua.LNilType:
		return nil
	default:
		return v.String()
	}
}
