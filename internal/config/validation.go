package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

var knownProducts = map[string]bool{
	ProductDSE:       true,
	ProductHCD:       true,
	ProductOpsCenter: true,
	ProductCassandra: true,
}

var heapSizePattern = regexp.MustCompile(`^[0-9]+[KkMmGg]?$`)

// Validate checks the configuration and returns every finding.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateRepositories()...)
	results = append(results, c.validateHeap()...)
	return results
}

// Err folds error-level findings into a single error, or nil.
func Err(results []ValidationResult) error {
	var msgs []string
	for _, r := range results {
		if r.Level == "error" {
			msgs = append(msgs, r.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c Config) validateRepositories() []ValidationResult {
	var results []ValidationResult
	keys := make([]string, 0, len(c.Repositories))
	for k := range c.Repositories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, product := range keys {
		tmpl := c.Repositories[product]
		if !knownProducts[product] {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("repositories: unknown product %q is ignored", product),
			})
			continue
		}
		if !strings.Contains(tmpl, "%s") {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("repositories.%s: template %q has no %%s placeholder", product, tmpl),
			})
			continue
		}
		if strings.Count(tmpl, "%") != strings.Count(tmpl, "%s") {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("repositories.%s: template %q may only use %%s verbs", product, tmpl),
			})
		}
	}
	return results
}

func (c Config) validateHeap() []ValidationResult {
	var results []ValidationResult
	fields := []struct {
		name, value string
	}{
		{"max_heap_size", c.Heap.MaxHeapSize},
		{"heap_newsize", c.Heap.HeapNewSize},
		{"max_direct_memory", c.Heap.MaxDirectMemory},
	}
	for _, f := range fields {
		if f.value == "" || heapSizePattern.MatchString(f.value) {
			continue
		}
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("heap.%s: %q is not a JVM size such as 512M", f.name, f.value),
		})
	}
	return results
}
