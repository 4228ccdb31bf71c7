package event

import "github.com/l1jgo/thallium/internal/core/ecs"

// Lifecycle events emitted by the App.

type EntitySpawned struct {
	Entity ecs.Entity
}

type EntityDestroyed struct {
	Entity ecs.Entity
}

type SystemFailed struct {
	System string
	Err    error
}
