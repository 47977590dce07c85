// Package statestore is the opaque key/value storage the providers use to
// persist their session between process restarts.
package statestore

// Fixed keys written by the identity providers
const (
	KeyAdminSession = "portal.admin_session"
	KeyRemoteToken  = "portal.remote_token"
)

type Store interface {
	// Get returns the stored value or errors.ErrNotFound
	Get(key string) ([]byte, error)

	// Put creates or replaces the value stored under key
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Namespaced prefixes every key with prefix, so several portal contexts can
// share one backing store while still using the fixed key names.
func Namespaced(store Store, prefix string) Store {
	return namespaced{store: store, prefix: prefix + "/"}
}

type namespaced struct {
	store  Store
	prefix string
}

func (n namespaced) Get(key string) ([]byte, error) {
	return n.store.Get(n.prefix + key)
}

func (n namespaced) Put(key string, value []byte) error {
	return n.store.Put(n.prefix+key, value)
}

func (n namespaced) Delete(key string) error {
	return n.store.Delete(n.prefix + key)
}
