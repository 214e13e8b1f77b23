package metadata

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v3"

	"github.com/wsiserve/wsiserve/wsi"
)

// Single-byte key prefixes isolate record classes in one keyspace.
const (
	imagePrefix   = 'i'
	filesetPrefix = 'f'
	groupPrefix   = 'g'
	permPrefix    = 'p'
)

// BadgerStore is a Store backed by an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if necessary) a badger database at the
// given directory path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.NumVersionsToKeep = 1
	opts.SyncWrites = false
	opts.Logger = nil

	wsi.Infof("Opening metadata store @ path %s\n", path)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemoryStore opens a badger database with no backing files, for
// tests and ephemeral deployments.
func OpenInMemoryStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func recordKey(prefix byte, id string) []byte {
	k := make([]byte, 0, len(id)+1)
	k = append(k, prefix)
	k = append(k, id...)
	return k
}

// getJSON unmarshals the value at key into v, returning ErrNotFound when
// absent.
func (s *BadgerStore) getJSON(key []byte, v interface{}) error {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return err
	}
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func (s *BadgerStore) putJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) GetImage(uuid string) (*Image, error) {
	img := new(Image)
	if err := s.getJSON(recordKey(imagePrefix, uuid), img); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *BadgerStore) PutImage(img *Image) error {
	return s.putJSON(recordKey(imagePrefix, img.UUID), img)
}

func (s *BadgerStore) GetFileset(uuid string) (*Fileset, error) {
	fs := new(Fileset)
	if err := s.getJSON(recordKey(filesetPrefix, uuid), fs); err != nil {
		return nil, err
	}
	return fs, nil
}

func (s *BadgerStore) PutFileset(fs *Fileset) error {
	return s.putJSON(recordKey(filesetPrefix, fs.UUID), fs)
}

func (s *BadgerStore) GetChannelGroup(uuid string) (*ChannelGroup, error) {
	cg := new(ChannelGroup)
	if err := s.getJSON(recordKey(groupPrefix, uuid), cg); err != nil {
		return nil, err
	}
	return cg, nil
}

func (s *BadgerStore) PutChannelGroup(cg *ChannelGroup) error {
	return s.putJSON(recordKey(groupPrefix, cg.UUID), cg)
}

// ListChannelGroups scans all groups and filters by image UUID.  Group
// counts per image are small enough that a prefix scan suffices.
func (s *BadgerStore) ListChannelGroups(imageUUID string) ([]*ChannelGroup, error) {
	var groups []*ChannelGroup
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{groupPrefix}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				cg := new(ChannelGroup)
				if err := json.Unmarshal(val, cg); err != nil {
					return err
				}
				if cg.ImageUUID == imageUUID {
					groups = append(groups, cg)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return groups, err
}

func permissionKey(subject, imageUUID string) []byte {
	k := make([]byte, 0, len(subject)+len(imageUUID)+2)
	k = append(k, permPrefix)
	k = append(k, subject...)
	k = append(k, 0)
	k = append(k, imageUUID...)
	return k
}

func (s *BadgerStore) HasPermission(subject, imageUUID string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(permissionKey(subject, imageUUID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *BadgerStore) GrantPermission(subject, imageUUID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(permissionKey(subject, imageUUID), []byte{1})
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
