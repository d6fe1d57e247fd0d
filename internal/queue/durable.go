package queue

import (
	"encoding/binary"
	"fmt"
	"time"

	"secureingest/internal/schema"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// durableBuffer is the crash-safe, single-writer/single-reader FIFO
// backing queue overflow (spec.md §4.1, "Durable buffer contract").
// It is implemented over a single bbolt file: each record lives under a
// monotonically increasing big-endian uint64 key in one bucket, so
// bucket.Cursor().First() always yields the oldest record and read/write
// both commit as a single ACID transaction.
type durableBuffer struct {
	db *bolt.DB
}

var queueBucket = []byte("queue")

type durableRecord struct {
	Ts      time.Time         `msgpack:"ts"`
	Payload schema.QueuedItem `msgpack:"payload"`
}

// openDurableBuffer opens (creating if necessary) the bbolt file at path
// and ensures the queue bucket exists.
func openDurableBuffer(path string) (*durableBuffer, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open durable buffer %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(queueBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init durable buffer bucket: %w", err)
	}
	return &durableBuffer{db: db}, nil
}

// write appends item and commits in one transaction.
func (d *durableBuffer) write(item schema.QueuedItem) error {
	rec := durableRecord{Ts: time.Now().UTC(), Payload: item}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode durable record: %w", err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(encodeSeq(id), data)
	})
}

// read returns the oldest record and removes it, both under one
// transaction. ok is false if the buffer is empty.
func (d *durableBuffer) read() (schema.QueuedItem, bool, error) {
	var item schema.QueuedItem
	var found bool

	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket)
		c := b.Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}

		var rec durableRecord
		if err := msgpack.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode durable record: %w", err)
		}
		if err := b.Delete(k); err != nil {
			return err
		}
		item = rec.Payload
		found = true
		return nil
	})
	if err != nil {
		return schema.QueuedItem{}, false, err
	}
	return item, found, nil
}

// size returns the current row count.
func (d *durableBuffer) size() int {
	var n int
	_ = d.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(queueBucket).Stats().KeyN
		return nil
	})
	return n
}

func (d *durableBuffer) close() error {
	return d.db.Close()
}

func encodeSeq(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}
