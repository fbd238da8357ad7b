package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/rs/zerolog"
)

// FSDenied is what every file system function returns inside the sandbox
const FSDenied = "EACCES: file system access denied in sandbox"

var fsModules = []string{"fs", "node:fs", "fs/promises", "node:fs/promises"}

var fsFunctions = []string{
	"readFile", "readFileSync", "writeFile", "writeFileSync",
	"appendFile", "appendFileSync", "readdir", "readdirSync",
	"stat", "statSync", "lstat", "lstatSync", "exists", "existsSync",
	"open", "openSync", "unlink", "unlinkSync", "rm", "rmSync",
	"mkdir", "mkdirSync", "rename", "renameSync",
	"createReadStream", "createWriteStream",
}

// The entry point is looked up in module.exports, then exports, then as a
// declaration named getValue in the script's own scope.
const (
	wrapperHead = "(function (module, exports, require, console, fetch, setTimeout, clearTimeout) {\n"
	wrapperTail = "\n;return typeof getValue === \"undefined\" ? undefined : getValue;\n})"
)

var (
	exportDecl = regexp.MustCompile(`(?m)^(\s*)export\s+(?:default\s+)?((?:async\s+)?function\b|const\b|let\b|var\b|class\b)`)
	exportList = regexp.MustCompile(`(?m)^\s*export\s*\{[^}]*\}\s*;?`)
)

// wrap turns a script into a function expression whose parameters are the
// only capabilities it receives
func wrap(source string) string {
	source = exportDecl.ReplaceAllString(source, "$1$2")
	source = exportList.ReplaceAllString(source, "")
	return wrapperHead + source + wrapperTail
}

type sandbox struct {
	ctx     context.Context
	vm      *goja.Runtime
	loop    *eventLoop
	fetcher *Fetcher
	log     zerolog.Logger

	require   goja.Value
	jsonParse goja.Callable
}

func newSandbox(ctx context.Context, vm *goja.Runtime, loop *eventLoop, fetcher *Fetcher, log zerolog.Logger) (*sandbox, error) {
	s := &sandbox{ctx: ctx, vm: vm, loop: loop, fetcher: fetcher, log: log}

	registry := require.NewRegistry(require.WithLoader(denyLoader))
	for _, name := range fsModules {
		registry.RegisterNativeModule(name, fsModule)
	}
	registry.Enable(vm)

	// require is handed to the script as a parameter, never as a global
	s.require = vm.Get("require")
	if err := vm.GlobalObject().Delete("require"); err != nil {
		return nil, fmt.Errorf("failed to scope require: %w", err)
	}

	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable")
	}
	s.jsonParse = parse

	return s, nil
}

// load evaluates the wrapped script and resolves its getValue entry point
func (s *sandbox) load(source string) (goja.Callable, error) {
	prog, err := goja.Compile("valuation.js", wrap(source), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptExecution, err)
	}

	factory, err := s.vm.RunProgram(prog)
	if err != nil {
		return nil, executionError(err)
	}
	wrapper, ok := goja.AssertFunction(factory)
	if !ok {
		return nil, fmt.Errorf("%w: script wrapper is not callable", ErrScriptExecution)
	}

	module := s.vm.NewObject()
	exports := s.vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptExecution, err)
	}

	declared, err := wrapper(goja.Undefined(),
		module,
		exports,
		s.require,
		s.console(),
		s.vm.ToValue(s.fetch),
		s.vm.ToValue(s.loop.setTimeout),
		s.vm.ToValue(s.loop.clearTimeout),
	)
	if err != nil {
		return nil, executionError(err)
	}

	for _, namespace := range []goja.Value{module.Get("exports"), exports} {
		if fn, ok := s.exported(namespace); ok {
			return fn, nil
		}
	}
	if fn, ok := goja.AssertFunction(declared); ok {
		return fn, nil
	}

	return nil, ErrMissingEntryPoint
}

func (s *sandbox) exported(namespace goja.Value) (goja.Callable, bool) {
	if namespace == nil || goja.IsUndefined(namespace) || goja.IsNull(namespace) {
		return nil, false
	}
	return goja.AssertFunction(namespace.ToObject(s.vm).Get("getValue"))
}

func denyLoader(path string) ([]byte, error) {
	return nil, fmt.Errorf("%s: %s", FSDenied, path)
}

func fsModule(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	deny := func(goja.FunctionCall) goja.Value {
		return vm.ToValue(FSDenied)
	}
	for _, name := range fsFunctions {
		_ = exports.Set(name, deny)
	}
}

func (s *sandbox) console() *goja.Object {
	c := s.vm.NewObject()
	_ = c.Set("log", s.printer(zerolog.InfoLevel, "script log"))
	_ = c.Set("info", s.printer(zerolog.InfoLevel, "script log"))
	_ = c.Set("debug", s.printer(zerolog.DebugLevel, "script log"))
	_ = c.Set("warn", s.printer(zerolog.WarnLevel, "script warn"))
	_ = c.Set("error", s.printer(zerolog.ErrorLevel, "script error"))
	return c
}

func (s *sandbox) printer(level zerolog.Level, msg string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, s.format(arg))
		}
		s.log.WithLevel(level).
			Str("source", "script").
			Str("output", strings.Join(parts, " ")).
			Msg(msg)
		return goja.Undefined()
	}
}

func (s *sandbox) format(v goja.Value) string {
	if _, isObject := v.(*goja.Object); !isObject {
		return v.String()
	}
	if _, isFunction := goja.AssertFunction(v); isFunction {
		return "[function]"
	}
	switch v.Export().(type) {
	case map[string]interface{}, []interface{}:
		if data, err := json.Marshal(v.Export()); err == nil {
			return string(data)
		}
	}
	return v.String()
}

func (s *sandbox) fetch(call goja.FunctionCall) goja.Value {
	promise, resolve, reject := s.vm.NewPromise()

	req, err := s.fetchRequest(call)
	if err != nil {
		reject(s.vm.NewTypeError(err.Error()))
		return s.vm.ToValue(promise)
	}

	s.loop.hold()
	go func() {
		resp, err := s.fetcher.Do(s.ctx, req)
		s.loop.enqueue(func() {
			s.loop.release()
			if err != nil {
				reject(s.vm.NewGoError(err))
				return
			}
			resolve(s.response(resp))
		})
	}()

	return s.vm.ToValue(promise)
}

func (s *sandbox) fetchRequest(call goja.FunctionCall) (fetchRequest, error) {
	target := call.Argument(0)
	if goja.IsUndefined(target) || goja.IsNull(target) {
		return fetchRequest{}, errors.New("fetch: url is required")
	}

	req := fetchRequest{
		Method: http.MethodGet,
		URL:    target.String(),
		Header: http.Header{},
	}

	opts := call.Argument(1)
	if goja.IsUndefined(opts) || goja.IsNull(opts) {
		return req, nil
	}
	obj := opts.ToObject(s.vm)

	if method := obj.Get("method"); method != nil && !goja.IsUndefined(method) {
		req.Method = method.String()
	}
	if body := obj.Get("body"); body != nil && !goja.IsUndefined(body) && !goja.IsNull(body) {
		req.Body = body.String()
	}
	if headers := obj.Get("headers"); headers != nil && !goja.IsUndefined(headers) && !goja.IsNull(headers) {
		fields, ok := headers.Export().(map[string]interface{})
		if !ok {
			return fetchRequest{}, errors.New("fetch: headers must be a plain object")
		}
		for name, value := range fields {
			req.Header.Set(name, fmt.Sprint(value))
		}
	}

	return req, nil
}

func (s *sandbox) response(resp *fetchResponse) *goja.Object {
	o := s.vm.NewObject()
	_ = o.Set("ok", resp.Status >= 200 && resp.Status < 300)
	_ = o.Set("status", resp.Status)
	_ = o.Set("statusText", resp.StatusText)
	_ = o.Set("url", resp.URL)

	headers := s.vm.NewObject()
	_ = headers.Set("get", func(call goja.FunctionCall) goja.Value {
		values := resp.Header.Values(call.Argument(0).String())
		if len(values) == 0 {
			return goja.Null()
		}
		return s.vm.ToValue(strings.Join(values, ", "))
	})
	_ = headers.Set("has", func(call goja.FunctionCall) goja.Value {
		return s.vm.ToValue(len(resp.Header.Values(call.Argument(0).String())) > 0)
	})
	_ = o.Set("headers", headers)

	body := string(resp.Body)
	_ = o.Set("text", func(goja.FunctionCall) goja.Value {
		return s.resolved(s.vm.ToValue(body))
	})
	_ = o.Set("json", func(goja.FunctionCall) goja.Value {
		v, err := s.jsonParse(goja.Undefined(), s.vm.ToValue(body))
		if err != nil {
			return s.rejected(err)
		}
		return s.resolved(v)
	})

	return o
}

func (s *sandbox) resolved(v goja.Value) goja.Value {
	promise, resolve, _ := s.vm.NewPromise()
	resolve(v)
	return s.vm.ToValue(promise)
}

func (s *sandbox) rejected(err error) goja.Value {
	promise, _, reject := s.vm.NewPromise()
	var exception *goja.Exception
	if errors.As(err, &exception) {
		reject(exception.Value())
	} else {
		reject(s.vm.NewGoError(err))
	}
	return s.vm.ToValue(promise)
}
