package store

import "github.com/aretw0/ripple/pkg/domain"

// On builds a reducer for a typed slice from per-action-type cases.
// Actions without a case leave the slice unchanged. A missing slice starts at the zero value of T.
func On[T any](cases map[string]func(T, domain.Action) T) Reducer {
	return func(slice any, act domain.Action) any {
		fn, ok := cases[act.Type]
		if !ok {
			return slice
		}
		cur, _ := slice.(T)
		return fn(cur, act)
	}
}

// Loading tracks bracketed operations in flight by name.
// It keeps a counter per name so overlapping brackets with the same name do not clear each other.
func Loading() Reducer {
	return On(map[string]func(map[string]int, domain.Action) map[string]int{
		domain.ActionLoading: func(cur map[string]int, act domain.Action) map[string]int {
			marker, err := domain.PayloadOf[domain.Loading](act)
			if err != nil {
				return cur
			}
			next := make(map[string]int, len(cur)+1)
			for k, v := range cur {
				next[k] = v
			}
			switch marker.Status {
			case domain.StatusStart:
				next[marker.Name]++
			case domain.StatusEnd:
				if next[marker.Name] <= 1 {
					delete(next, marker.Name)
				} else {
					next[marker.Name]--
				}
			}
			return next
		},
	})
}
