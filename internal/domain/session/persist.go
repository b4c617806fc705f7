package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const keyPrefix = "session:"

// Persister stores session snapshots outside the process.
type Persister interface {
	// Load returns nil, nil when no snapshot exists for id.
	Load(ctx context.Context, id string) (*Session, error)
	// Save writes sess; a positive ttl bounds the snapshot's lifetime.
	Save(ctx context.Context, sess Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// BadgerPersister keeps zstd-compressed JSON snapshots in a badger
// database. Entries carry the session TTL, so badger discards sessions
// that would have expired anyway.
type BadgerPersister struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenBadger opens (or creates) the snapshot database in dir. An empty dir
// opens an in-memory database.
func OpenBadger(dir string, logger *logging.Logger) (*BadgerPersister, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.WARNING).
		WithLogger(badgerLogger{logger: logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot decoder: %w", err)
	}

	return &BadgerPersister{db: db, enc: enc, dec: dec}, nil
}

// Load implements Persister.
func (p *BadgerPersister) Load(_ context.Context, id string) (*Session, error) {
	var sess *Session

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw, err := p.dec.DecodeAll(val, nil)
			if err != nil {
				return fmt.Errorf("failed to decompress snapshot: %w", err)
			}
			sess = &Session{}
			return sonic.Unmarshal(raw, sess)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", id, err)
	}
	return sess, nil
}

// Save implements Persister.
func (p *BadgerPersister) Save(_ context.Context, sess Session, ttl time.Duration) error {
	raw, err := sonic.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	data := p.enc.EncodeAll(raw, nil)

	return p.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(sess.ID), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete implements Persister.
func (p *BadgerPersister) Delete(_ context.Context, id string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close implements Persister.
func (p *BadgerPersister) Close() error {
	p.dec.Close()
	_ = p.enc.Close()
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

// badgerLogger routes badger's printf-style logging into zap.
type badgerLogger struct {
	logger *logging.Logger
}

func (l badgerLogger) sugar() *zap.SugaredLogger {
	if l.logger == nil {
		return zap.NewNop().Sugar()
	}
	return l.logger.Named("badger").Sugar()
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.sugar().Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.sugar().Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.sugar().Infof(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.sugar().Debugf(format, args...) }
