package wm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/internal/value"
)

type fakeTemplates map[string]value.Template

func (f fakeTemplates) Template(name string) (value.Template, bool) {
	t, ok := f[name]
	return t, ok
}

func TestInsertAssignsIncreasingHandles(t *testing.T) {
	w := New(nil)
	h1, err := w.Insert("order", value.Object(value.F("id", value.Int(1))))
	require.NoError(t, err)
	h2, err := w.Insert("order", value.Object(value.F("id", value.Int(2))))
	require.NoError(t, err)
	assert.Less(t, uint64(h1), uint64(h2))
}

func TestHandleNeverReusedAfterRetract(t *testing.T) {
	w := New(nil)
	h1, _ := w.Insert("order", value.Object())
	require.NoError(t, w.Retract(h1))
	h2, _ := w.Insert("order", value.Object())
	assert.NotEqual(t, h1, h2)
	assert.Greater(t, uint64(h2), uint64(h1))
}

func TestInsertValidatesAgainstTemplate(t *testing.T) {
	tpl := value.Template{Name: "order", Fields: []value.FieldSpec{
		{Name: "qty", Kind: value.KindInt, Required: true},
	}}
	w := New(fakeTemplates{"order": tpl})

	_, err := w.Insert("order", value.Object())
	require.Error(t, err)
	var tv *value.TemplateViolation
	assert.ErrorAs(t, err, &tv)

	h, err := w.Insert("order", value.Object(value.F("qty", value.Int(5))))
	require.NoError(t, err)
	f, ok := w.Get(h)
	require.True(t, ok)
	assert.Equal(t, "order", f.Type)
}

func TestUpdateUnknownHandle(t *testing.T) {
	w := New(nil)
	err := w.Update(Handle(999), value.Object())
	require.Error(t, err)
	var u *Unknown
	assert.ErrorAs(t, err, &u)
}

func TestUpdateRecordsAsUpdatedNotInsertedRetracted(t *testing.T) {
	w := New(nil)
	h, _ := w.Insert("order", value.Object(value.F("qty", value.Int(1))))
	w.DrainChanges()

	require.NoError(t, w.Update(h, value.Object(value.F("qty", value.Int(2)))))
	cs := w.DrainChanges()
	assert.Equal(t, []Handle{h}, cs.Updated)
	assert.Empty(t, cs.Inserted)
	assert.Empty(t, cs.Retracted)
}

func TestByTypeAndTypesReflectLiveFacts(t *testing.T) {
	w := New(nil)
	h1, _ := w.Insert("order", value.Object())
	_, _ = w.Insert("customer", value.Object())
	assert.Equal(t, []string{"customer", "order"}, w.Types())

	require.NoError(t, w.Retract(h1))
	assert.Equal(t, []string{"customer"}, w.Types())
	assert.Empty(t, w.ByType("order"))
}

func TestDrainChangesClearsLog(t *testing.T) {
	w := New(nil)
	w.Insert("order", value.Object())
	cs := w.DrainChanges()
	assert.False(t, cs.Empty())

	cs2 := w.DrainChanges()
	assert.True(t, cs2.Empty())
}

func TestSnapshotIsIndependentOfLaterMutation(t *testing.T) {
	w := New(nil)
	h, _ := w.Insert("order", value.Object(value.F("qty", value.Int(1))))
	snap := w.Snapshot()

	require.NoError(t, w.Update(h, value.Object(value.F("qty", value.Int(99)))))

	f, ok := snap.Get(h)
	require.True(t, ok)
	qty, _, _ := f.Data.Get("qty")
	assert.Equal(t, int64(1), qty.AsInt())
}

func TestResetClearsEverything(t *testing.T) {
	w := New(nil)
	w.Insert("order", value.Object())
	w.Reset()
	assert.Empty(t, w.Types())
	h, _ := w.Insert("order", value.Object())
	assert.Equal(t, Handle(1), h)
}
