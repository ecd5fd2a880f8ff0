package scanner

import (
	"context"
	"sync"
)

// ScanPortRange probes every port of r on host using exactly concurrency workers and returns
// the open ports in discovery order.
// All ports are queued up front; each worker drains the queue until it is empty, so every port
// is claimed by exactly one worker. The call returns only after every dispatched probe has
// finished.
func (s *Scanner) ScanPortRange(ctx context.Context, host string, r PortRange, concurrency int) ([]int, error) {
	if err := validateConcurrency(concurrency); err != nil {
		return nil, err
	}

	total := r.Len()
	if total == 0 {
		return []int{}, nil
	}

	jobs := make(chan int, total)
	for port := r.Start; port <= r.End; port++ {
		jobs <- port
	}
	close(jobs)

	results := make(chan int, total)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range jobs {
				if outcome := s.prober.Probe(ctx, host, port); outcome.Open {
					results <- outcome.Port
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	openPorts := make([]int, 0, len(results))
	for port := range results {
		openPorts = append(openPorts, port)
	}
	return openPorts, nil
}
