package taskengine

import "sync"

// =============================================================================
// Global Engine Helper (Singleton)
// =============================================================================

var (
	globalEngine *Engine
	globalMu     sync.Mutex
)

// InitGlobalEngine creates and starts the process-wide engine with the given
// number of workers. Calling it again while an engine exists does nothing.
func InitGlobalEngine(workers int, opts ...Option) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalEngine != nil {
		return nil // Already initialized
	}

	e, err := NewEngine(workers, append([]Option{WithName("global-engine")}, opts...)...)
	if err != nil {
		return err
	}
	globalEngine = e
	return nil
}

// GetGlobalEngine returns the global engine instance.
// It panics if InitGlobalEngine has not been called.
func GetGlobalEngine() *Engine {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalEngine == nil {
		panic("global engine not initialized. Call InitGlobalEngine() first.")
	}
	return globalEngine
}

// ShutdownGlobalEngine stops the global engine, waiting for queued tasks.
func ShutdownGlobalEngine() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalEngine != nil {
		globalEngine.Stop()
		globalEngine = nil
	}
}
