package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
)

type countingInspector struct {
	calls  atomic.Int32
	fields []fieldmap.FieldInfo
	err    error
}

func (c *countingInspector) Inspect(_ context.Context, _ []byte) ([]fieldmap.FieldInfo, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.fields, nil
}

func TestStore_CachesByContent(t *testing.T) {
	ins := &countingInspector{fields: inv("name", "email")}
	store := NewStore(ins, 4, nil)

	pdfA := []byte("%PDF-1.7 a")
	pdfB := []byte("%PDF-1.7 b")

	for i := 0; i < 3; i++ {
		fields, err := store.Fields(context.Background(), pdfA)
		require.NoError(t, err)
		assert.Len(t, fields, 2)
	}
	assert.Equal(t, int32(1), ins.calls.Load())

	_, err := store.Fields(context.Background(), pdfB)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ins.calls.Load())

	stats := store.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, 2, stats.Size)

	store.Invalidate(pdfA)
	_, err = store.Fields(context.Background(), pdfA)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ins.calls.Load())
}

func TestStore_ErrorsAreNotCached(t *testing.T) {
	ins := &countingInspector{err: errors.New("corrupt xref")}
	store := NewStore(ins, 4, nil)

	_, err := store.Fields(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	_, err = store.Fields(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Equal(t, int32(2), ins.calls.Load())
	assert.Equal(t, 0, store.Stats().Size)
}

func TestStore_Disabled(t *testing.T) {
	ins := &countingInspector{fields: inv("a")}
	store := NewStore(ins, -1, nil)

	for i := 0; i < 2; i++ {
		_, err := store.Fields(context.Background(), []byte("%PDF"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), ins.calls.Load())
	assert.Equal(t, CacheStats{}, store.Stats())
}

func TestStore_ConcurrentCallersGetIndependentCopies(t *testing.T) {
	ins := &countingInspector{fields: []fieldmap.FieldInfo{{Name: "c", Type: fieldmap.FieldTypeRadio, Options: []string{"a", "b"}}}}
	store := NewStore(ins, 4, nil)
	pdf := []byte("%PDF shared")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fields, err := store.Fields(context.Background(), pdf)
			if assert.NoError(t, err) {
				fields[0].Options[0] = "mutated"
			}
		}()
	}
	wg.Wait()

	fields, err := store.Fields(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fields[0].Options)
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, Identity([]byte("x")), Identity([]byte("x")))
	assert.NotEqual(t, Identity([]byte("x")), Identity([]byte("y")))
	assert.Len(t, Identity(nil), 64)
}
