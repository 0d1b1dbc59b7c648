package dispatch

import (
	"context"
	"fmt"

	"github.com/crosspost-io/crosspost/internal/models"
)

// Media describes an attachment handed to a platform adapter.
type Media struct {
	Path string
	Type string
}

type Result struct {
	Success        bool
	PlatformPostID string
	Err            error
}

// Dispatcher is the boundary to one platform adapter. The core never
// knows platform API details; it only hands over a resolved post.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string, media *Media, accountHint string) Result
}

// Error wraps whatever an adapter reported, tagged with its platform.
// The message is stored verbatim as the failure cause.
type Error struct {
	Platform string
	Reason   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Platform, e.Reason)
}

func (e *Error) Unwrap() error { return e.Reason }

// Registry indexes adapters by platform name and expands "all" to the
// fixed fan-out list.
type Registry struct {
	adapters map[string]Dispatcher
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Dispatcher)}
}

func (r *Registry) Register(platform string, d Dispatcher) {
	r.adapters[platform] = d
}

func (r *Registry) Get(platform string) (Dispatcher, bool) {
	d, ok := r.adapters[platform]
	return d, ok
}

// Target pairs a platform name with its adapter.
type Target struct {
	Platform   string
	Dispatcher Dispatcher
}

// Resolve returns the adapters a scheduled platform maps to, in fan-out
// order. An unknown or unregistered platform yields an error.
func (r *Registry) Resolve(platform string) ([]Target, error) {
	names := []string{platform}
	if platform == models.PlatformAll {
		names = models.FanoutPlatforms
	}

	targets := make([]Target, 0, len(names))
	for _, name := range names {
		d, ok := r.adapters[name]
		if !ok {
			return nil, fmt.Errorf("no dispatcher registered for platform %q", name)
		}
		targets = append(targets, Target{Platform: name, Dispatcher: d})
	}
	return targets, nil
}
