// Package state reconstructs which instances exist and which are running.
//
// There is no authoritative registry: queries correlate the data
// namespace, the session metadata store, and the live process table,
// and every answer is re-derived on demand.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// Session is the typed record of one launch: what the manager knew the
// moment the hypervisor came up. Records can go stale when a VM is
// killed out-of-band, so readers always verify against the process
// table before trusting one.
type Session struct {
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	SSHPort    int       `json:"ssh_port"`
	SocketPath string    `json:"socket_path"`
	SeedPID    int       `json:"seed_pid,omitempty"`
	SeedPort   int       `json:"seed_port,omitempty"`
	SeedDir    string    `json:"seed_dir,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// Store persists session records in a small bbolt database under the
// data namespace.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if needed) the session store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes a session record keyed by instance name.
func (s *Store) Put(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(sess.Name), data)
	})
}

// Get returns the session record for name, or nil when none exists.
func (s *Store) Get(name string) (*Session, error) {
	var sess *Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(name))
		if data == nil {
			return nil
		}
		sess = &Session{}
		return json.Unmarshal(data, sess)
	})
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", name, err)
	}
	return sess, nil
}

// Delete removes the session record for name. Missing records are not
// an error.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(name))
	})
}

// List returns all session records.
func (s *Store) List() ([]*Session, error) {
	var sessions []*Session
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(_, data []byte) error {
			sess := &Session{}
			if err := json.Unmarshal(data, sess); err != nil {
				return err
			}
			sessions = append(sessions, sess)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
