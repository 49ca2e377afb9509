package cronutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipIfRunningDropsOverlappingTicks(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	runs := 0

	job := SkipIfRunning("test", func() {
		runs++
		close(started)
		<-block
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job()
	}()

	<-started
	// a tick arriving mid-run is dropped
	job()
	close(block)
	wg.Wait()

	require.Equal(t, 1, runs)
}

func TestSkipIfRunningAllowsSequentialRuns(t *testing.T) {
	runs := 0
	job := SkipIfRunning("test", func() { runs++ })

	job()
	job()
	job()

	require.Equal(t, 3, runs)
}
