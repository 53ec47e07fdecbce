package core

import (
	"fmt"
	"sort"
	"sync"
)

// TemplateProfile describes a downloadable stock report template.
type TemplateProfile struct {
	Key        string // URL and CLI identifier: "standard"
	Label      string // Display name
	Headers    []string
	SampleRows [][]any // string and int cells only
}

var (
	registry   = make(map[string]TemplateProfile)
	registryMu sync.RWMutex
)

// Register adds a template profile to the registry.
// Panics if a profile with the same key is already registered.
func Register(p TemplateProfile) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[p.Key]; exists {
		panic(fmt.Sprintf("template profile already registered: %s", p.Key))
	}
	registry[p.Key] = p
}

// GetProfile returns a template profile by key.
func GetProfile(key string) (TemplateProfile, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[key]
	return p, ok
}

// Profiles returns all registered profiles sorted by key.
func Profiles() []TemplateProfile {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TemplateProfile, 0, len(registry))
	for _, p := range registry {
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Clear removes all registered profiles.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TemplateProfile)
}
