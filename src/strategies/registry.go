package strategies

import (
	"fmt"
	"sync"

	"stream-manager/src/interfaces"
)

// The global registry map. Key is the strategy name (e.g., "rsi"), value is
// the constructor function.
var (
	registry = make(map[string]interfaces.IStrategyConstructor)
	mu       sync.RWMutex
)

// Register is called by each strategy's init() function to add itself to the map.
func Register(name string, constructor interfaces.IStrategyConstructor) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("strategy constructor already registered for name: %s", name)
	}
	registry[name] = constructor
	return nil
}

// GetConstructor retrieves a registered constructor by name.
func GetConstructor(name string) (interfaces.IStrategyConstructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	constructor, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown strategy type: %s", name)
	}
	return constructor, nil
}

// New builds a strategy instance by registered name.
func New(name string, params map[string]float64) (interfaces.IStrategy, error) {
	constructor, err := GetConstructor(name)
	if err != nil {
		return nil, err
	}
	return constructor(params)
}
