package script

import (
	"context"
	"time"

	"github.com/dop251/goja"
)

// eventLoop runs every callback into a runtime on the goroutine that owns it.
// Timers and in-flight fetches post jobs from their own goroutines; the owner
// drains them until getValue settles.
type eventLoop struct {
	vm   *goja.Runtime
	jobs chan func()
	quit chan struct{}

	// Only touched on the owning goroutine.
	pending int
	timers  map[int64]*time.Timer
	nextID  int64
	err     error
}

func newEventLoop(vm *goja.Runtime) *eventLoop {
	return &eventLoop{
		vm:     vm,
		jobs:   make(chan func(), 16),
		quit:   make(chan struct{}),
		timers: make(map[int64]*time.Timer),
	}
}

// enqueue is safe from any goroutine. Jobs posted after stop are dropped.
func (l *eventLoop) enqueue(job func()) {
	select {
	case l.jobs <- job:
	case <-l.quit:
	}
}

// hold registers outstanding work that will eventually enqueue a job
func (l *eventLoop) hold() { l.pending++ }

// release marks outstanding work as done
func (l *eventLoop) release() { l.pending-- }

// run processes jobs until settled reports true.
// It fails when a callback throws, when ctx ends, or when nothing is left
// that could settle the result.
func (l *eventLoop) run(ctx context.Context, settled func() bool) error {
	for !settled() {
		if l.err != nil {
			return l.err
		}
		if l.pending == 0 {
			return errNeverSettled
		}

		select {
		case job := <-l.jobs:
			job()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// stop drops pending timers and unblocks goroutines waiting to enqueue
func (l *eventLoop) stop() {
	close(l.quit)
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

func (l *eventLoop) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(l.vm.NewTypeError("setTimeout: callback must be a function"))
	}

	delay := call.Argument(1).ToInteger()
	if delay < 0 {
		delay = 0
	}

	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	l.nextID++
	id := l.nextID
	l.hold()
	l.timers[id] = time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		l.enqueue(func() {
			if _, active := l.timers[id]; !active {
				return
			}
			delete(l.timers, id)
			l.release()

			if _, err := fn(goja.Undefined(), args...); err != nil && l.err == nil {
				l.err = err
			}
		})
	})

	return l.vm.ToValue(id)
}

func (l *eventLoop) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
		l.release()
	}
	return goja.Undefined()
}
