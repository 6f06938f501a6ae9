package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for behavior policies.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the ai/
// subdirectory of scriptsDir. A missing directory loads nothing.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.loadDir(filepath.Join(scriptsDir, "ai")); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load ai scripts: %w", err)
	}
	return e, nil
}

// NewEngineFromSource creates an engine from a script held in memory.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasFunc reports whether a global Lua function is defined.
func (e *Engine) HasFunc(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// WanderContext is what the wander policy sees of one entity.
type WanderContext struct {
	Entity string
	X      float64
	Y      float64
	Dir    string
	Tick   uint64
}

// ChooseDirection calls Lua wander_dir(ctx) and returns the direction name it
// picks. ok is false when the function is missing, fails, or returns a
// non-string; the caller falls back to its own choice.
func (e *Engine) ChooseDirection(ctx WanderContext) (dir string, ok bool) {
	fn, isFn := e.vm.GetGlobal("wander_dir").(*lua.LFunction)
	if !isFn {
		return "", false
	}

	t := e.vm.NewTable()
	t.RawSetString("entity", lua.LString(ctx.Entity))
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("y", lua.LNumber(ctx.Y))
	t.RawSetString("dir", lua.LString(ctx.Dir))
	t.RawSetString("tick", lua.LNumber(ctx.Tick))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua wander_dir error", zap.Error(err), zap.String("entity", ctx.Entity))
		return "", false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	s, isStr := result.(lua.LString)
	if !isStr {
		e.log.Debug("lua wander_dir returned non-string", zap.String("type", result.Type().String()))
		return "", false
	}
	return string(s), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
