package state

// Unlocker releases a held state lock.
type Unlocker interface {
	Unlock() error
}

// Lock takes the advisory single-writer lock for this store. It never
// blocks: when another process holds the lock core.ErrLocked is returned.
func (s *FileStore) Lock() (Unlocker, error) {
	l, err := acquire(s.lockPath)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("state lock acquired", "path", s.lockPath)
	return l, nil
}
