// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

// RawLog stores ContentRecords under a monotonically increasing sequence.
// A secondary index maps each content identity to its latest entry.
type RawLog struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.RawLog = (*RawLog)(nil)

// NewRawLog creates a new RawLog.
func NewRawLog(backend *Backend) (*RawLog, error) {
	seq, err := backend.GetSequence(rawLogSeq)
	if err != nil {
		return nil, err
	}
	return &RawLog{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the sequence lease.
func (l *RawLog) Close() error {
	return l.seq.Release()
}

// Append writes the record at the end of the log.
func (l *RawLog) Append(ctx context.Context, record *core.ContentRecord) error {
	if err := core.ValidateContentRecord(record); err != nil {
		return err
	}

	next, err := l.seq.Next()
	if err != nil {
		return err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if next == 0 {
		next, err = l.seq.Next()
		if err != nil {
			return err
		}
	}

	return l.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRawLogKey(next), storage.MarshalContentRecord(record)); err != nil {
			return err
		}
		if err := tx.Set(makeRawIndexKey(record.Key()), encodeSeq(next)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Lookup returns the latest appended record for key.
func (l *RawLog) Lookup(ctx context.Context, key core.ContentKey) (*core.ContentRecord, error) {
	var record *core.ContentRecord
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		idx, err := tx.Get(makeRawIndexKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var seq uint64
		err = idx.Value(func(val []byte) error {
			if len(val) != 8 {
				return storage.ErrTruncatedData
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return err
		}

		item, err := tx.Get(makeRawLogKey(seq))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalContentRecord(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}
