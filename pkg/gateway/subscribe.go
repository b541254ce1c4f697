package gateway

import (
	"context"
	"log"
)

// ReadFunc loads the current value of a subscribed path.
type ReadFunc func(ctx context.Context) (Snapshot, error)

// Pump turns a stream of changed paths into a stream of full snapshots of
// path. Bursts of changes are coalesced: the subscriber always gets the
// latest value, never a diff. The returned channel closes when ctx is done
// or changes is closed.
func Pump(ctx context.Context, path string, read ReadFunc, changes <-chan string) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{} // initial value

	go func() {
		defer close(dirty)
		for {
			select {
			case <-ctx.Done():
				return
			case changed, ok := <-changes:
				if !ok {
					return
				}
				if !Overlaps(changed, path) {
					continue
				}
				select {
				case dirty <- struct{}{}:
				default:
				}
			}
		}
	}()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-dirty:
				if !ok {
					return
				}
				snap, err := read(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("gateway: subscription read %s: %v", path, err)
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
