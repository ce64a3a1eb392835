package database

// Store is the key/value storage a participant applies committed operations
// to. All operations are synchronous: a Set or Delete is visible to the next
// Get as soon as it returns.
type Store interface {
	Get(key string) (value string, exists bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Exists(key string) (bool, error)
	Close() error
}
