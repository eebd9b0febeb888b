// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		BackendMemory: func(t *testing.T) Store { return NewMemoryStore() },
		BackendFile: func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
			require.NoError(t, err)
			return s
		},
		BackendSQLite: func(t *testing.T) Store {
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "clock.sqlite"))
			require.NoError(t, err)
			return s
		},
		BackendBadger: func(t *testing.T) Store {
			s, err := OpenBadgerStore(filepath.Join(t.TempDir(), "badger"))
			require.NoError(t, err)
			return s
		},
		BackendRedis: func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := OpenRedisStore(context.Background(), mr.Addr(), 0)
			require.NoError(t, err)
			return s
		},
	}
}

func TestStores_LoadSaveContract(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { require.NoError(t, s.Close()) }()

			_, ok, err := s.Load(ctx, "timewarp.clock")
			require.NoError(t, err)
			assert.False(t, ok, "missing key must report absent, not an error")

			require.NoError(t, s.Save(ctx, "timewarp.clock", []byte(`{"rate":1}`)))
			data, ok, err := s.Load(ctx, "timewarp.clock")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `{"rate":1}`, string(data))

			require.NoError(t, s.Save(ctx, "timewarp.clock", []byte(`{"rate":50}`)))
			data, _, err = s.Load(ctx, "timewarp.clock")
			require.NoError(t, err)
			assert.Equal(t, `{"rate":50}`, string(data), "save must replace the previous record")

			assert.ErrorIs(t, s.Save(ctx, " ", []byte("x")), ErrEmptyKey)
			_, _, err = s.Load(ctx, "")
			assert.ErrorIs(t, err, ErrEmptyKey)
		})
	}
}

func TestFileStore_KeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "../outside", []byte("x")))
	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Save(context.Background(), "k", buf))
	buf[0] = 'x'

	data, _, err := s.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, Config{Backend: "Memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, Config{Backend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(ctx, Config{Backend: BackendFile})
	assert.Error(t, err, "file backend requires a path")
}

func TestOpenRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenRedisStore(context.Background(), addr, 0)
	assert.Error(t, err)
}
