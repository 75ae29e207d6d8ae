package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Registry auth is written by login handlers while pull/push handlers read
// it from concurrent requests, so access must hold up under the race
// detector.
func TestRegistryAuthConcurrentAccess(t *testing.T) {
	e := &DockerEngine{}

	const writers = 25
	const readers = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			e.setRegistryAuth(fmt.Sprintf("auth-%d", idx))
		}(i)
	}
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.registryAuth()
		}()
	}
	wg.Wait()

	// Last write wins; whichever it was, it must be one of the written values
	assert.Regexp(t, `^auth-\d+$`, e.registryAuth())
}

func TestTrimLeadingSlash(t *testing.T) {
	assert.Equal(t, "web", trimLeadingSlash("/web"))
	assert.Equal(t, "web", trimLeadingSlash("web"))
	assert.Equal(t, "", trimLeadingSlash(""))
}
