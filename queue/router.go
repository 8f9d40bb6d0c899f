package queue

import (
	"fmt"
	"sort"
)

// Class identifies a kind of background job
type Class string

const (
	ClassWebhook Class = "webhook"
	ClassDefault Class = "default"
)

// Default lane names
const (
	LaneWebhooks = "webhooks"
	LaneDefault  = "default"
)

// Router assigns job classes to lanes. It only answers with a lane name.
type Router struct {
	lanes    map[Class]string
	fallback string
}

// NewRouter returns a router with webhook dispatch on its own lane and
// everything else on the default lane
func NewRouter() *Router {
	return &Router{
		lanes:    map[Class]string{ClassWebhook: LaneWebhooks},
		fallback: LaneDefault,
	}
}

// Assign maps a class to a lane. The webhook lane is exclusive: no other
// class may share it, and webhooks may not share a lane with another class.
func (r *Router) Assign(class Class, lane string) error {
	if lane == "" {
		return fmt.Errorf("lane name cannot be empty for class %s", class)
	}
	if class == ClassWebhook {
		if lane == r.fallback {
			return fmt.Errorf("webhook lane cannot be the fallback lane %s", lane)
		}
		for c, l := range r.lanes {
			if c != ClassWebhook && l == lane {
				return fmt.Errorf("lane %s is already used by %s jobs", lane, c)
			}
		}
	} else if lane == r.lanes[ClassWebhook] {
		return fmt.Errorf("lane %s is reserved for %s jobs", lane, ClassWebhook)
	}
	r.lanes[class] = lane
	return nil
}

// Lane returns the lane for a class
func (r *Router) Lane(class Class) string {
	if lane, ok := r.lanes[class]; ok {
		return lane
	}
	return r.fallback
}

// Lanes returns every lane the router can produce, webhook lane first
func (r *Router) Lanes() []string {
	seen := map[string]bool{r.lanes[ClassWebhook]: true}
	var others []string
	for _, l := range append(r.laneValues(), r.fallback) {
		if !seen[l] {
			seen[l] = true
			others = append(others, l)
		}
	}
	sort.Strings(others)
	return append([]string{r.lanes[ClassWebhook]}, others...)
}

func (r *Router) laneValues() []string {
	out := make([]string, 0, len(r.lanes))
	for _, l := range r.lanes {
		out = append(out, l)
	}
	return out
}
