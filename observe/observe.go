// Package observe provides explicit change notification between market
// objects and their dependents. An Observable keeps a registry of
// observers and pushes Update calls on change; there is no implicit
// reactivity, dependents keep their own dirty flags.
package observe

// Observer receives change notifications from observables it registered with.
type Observer interface {
	Update()
}

// Observable maintains the set of registered observers.
//
// The zero value is ready to use. Embed by value in market objects that
// need to broadcast invalidation (surfaces, indexes, evaluation date).
type Observable struct {
	observers map[Observer]struct{}
}

// RegisterObserver adds obs to the notification set. Registering the same
// observer twice is a no-op.
func (o *Observable) RegisterObserver(obs Observer) {
	if o.observers == nil {
		o.observers = make(map[Observer]struct{})
	}
	o.observers[obs] = struct{}{}
}

// UnregisterObserver removes obs from the notification set.
func (o *Observable) UnregisterObserver(obs Observer) {
	delete(o.observers, obs)
}

// NotifyObservers calls Update on every registered observer.
func (o *Observable) NotifyObservers() {
	for obs := range o.observers {
		obs.Update()
	}
}
