package matchbridge

import (
	"runtime"
	"sync"

	"github.com/czx-lab/matchbridge/xlog"
	"go.uber.org/zap"
)

var (
	defaultIsStackBuf  = false   // Whether to print stack information when a module panics
	defaultStackBufLen = 4096    // Length of the stack buffer
	mods               []*module // List of registered modules
	modsMu             sync.Mutex
)

type (
	ModuleConf struct {
		IsStackBuf  bool // Whether to print stack information when a module panics
		StackBufLen int  // Length of the stack buffer
	}
	// Module is a long-lived part of the process.
	Module interface {
		// Init prepares the module. All modules are initialised before any
		// of them runs.
		Init()
		// Destroy releases the module's resources after Run returned.
		Destroy()
		// Run is the module's main loop. It returns once done receives.
		Run(done chan struct{})
	}

	module struct {
		mi  Module
		wg  sync.WaitGroup
		sig chan struct{}
	}
)

// MustConf sets how module panics are logged. Call it before Init.
func MustConf(conf ModuleConf) {
	defaultIsStackBuf = conf.IsStackBuf
	if conf.StackBufLen > 0 {
		defaultStackBufLen = conf.StackBufLen
	}
}

// Register adds a module. Modules are initialised in registration order and
// destroyed in reverse.
func Register(mi Module) {
	m := new(module)
	m.mi = mi
	m.sig = make(chan struct{}, 1)

	modsMu.Lock()
	mods = append(mods, m)
	modsMu.Unlock()
}

// Init initialises every registered module, then starts each Run on its
// own goroutine.
func Init() {
	modsMu.Lock()
	defer modsMu.Unlock()

	for i := range mods {
		mods[i].mi.Init()
	}

	for i := range mods {
		m := mods[i]
		m.wg.Add(1)
		go run(m)
	}
}

// Destroy signals each module, waits for its Run to return and destroys it,
// last registered first. The registry is empty afterwards.
func Destroy() {
	modsMu.Lock()
	defer modsMu.Unlock()

	for i := len(mods) - 1; i >= 0; i-- {
		m := mods[i]
		m.sig <- struct{}{}
		m.wg.Wait()
		destroy(m)
	}
	mods = nil
}

func run(m *module) {
	defer m.wg.Done()
	defer recovery("run")

	m.mi.Run(m.sig)
}

func destroy(m *module) {
	defer recovery("destroy")

	m.mi.Destroy()
}

func recovery(stage string) {
	r := recover()
	if r == nil {
		return
	}
	if defaultIsStackBuf {
		buf := make([]byte, defaultStackBufLen)
		l := runtime.Stack(buf, false)
		xlog.Write().Sugar().Errorf("module %s panic: %v: %s", stage, r, buf[:l])
		return
	}
	xlog.Write().Error("module panic", zap.String("stage", stage), zap.Any("panic", r))
}
