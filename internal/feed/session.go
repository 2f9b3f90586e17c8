package feed

import "context"

// Handler receives session events. It is called on session owned goroutines
// and must not block for long.
type Handler func(Event)

// Session is one vendor connection carrying a share of the subscriptions.
type Session interface {
	// Open connects and authenticates. Events start flowing to the handler
	// given to the Factory.
	Open(ctx context.Context) error
	// Subscribe requests updates for keys.
	Subscribe(ctx context.Context, keys []string) error
	// Stop closes the connection. It is safe to call more than once.
	Stop() error
}

// Factory creates the session with the given zero-based index.
type Factory func(index int, handler Handler) (Session, error)

// Partition assigns keys to n sessions round-robin: key i goes to session
// i mod n. Order within a session follows the input.
func Partition(keys []string, n int) [][]string {
	if n <= 0 {
		return nil
	}
	out := make([][]string, n)
	for i, key := range keys {
		out[i%n] = append(out[i%n], key)
	}
	return out
}
