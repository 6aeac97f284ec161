package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

func TestCreateGetRoundTrip(t *testing.T) {
	r := NewRegistry[string]()
	id := r.Create("instance-a")

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "instance-a", got)
}

func TestGetLatestResolvesToMostRecentlyCreated(t *testing.T) {
	r := NewRegistry[string]()
	r.Create("first")
	r.Create("second")

	got, err := r.Get(system.LatestInstanceID)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestGetLatestBeforeAnyCreateIsNotFound(t *testing.T) {
	r := NewRegistry[string]()

	_, err := r.Get(system.LatestInstanceID)
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	r := NewRegistry[string]()

	_, err := r.Get("nonexistent")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestListReturnsAllCreatedIDs(t *testing.T) {
	r := NewRegistry[string]()
	a := r.Create("a")
	b := r.Create("b")

	ids := r.List()
	assert.ElementsMatch(t, []string{a, b}, ids)
}

func TestDeleteRemovesInstance(t *testing.T) {
	r := NewRegistry[string]()
	id := r.Create("a")

	assert.Equal(t, id, r.Delete(id))
	_, err := r.Get(id)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestDeleteUnknownIDIsIdempotentNoop(t *testing.T) {
	r := NewRegistry[string]()
	assert.Equal(t, "nonexistent", r.Delete("nonexistent"))
}

func TestDeleteIsIdempotentOnSecondCall(t *testing.T) {
	r := NewRegistry[string]()
	id := r.Create("a")

	assert.Equal(t, id, r.Delete(id))
	assert.Equal(t, id, r.Delete(id))
}

func TestDeletingLatestClearsLatestAlias(t *testing.T) {
	r := NewRegistry[string]()
	id := r.Create("only")

	assert.Equal(t, id, r.Delete(id))

	_, err := r.Get(system.LatestInstanceID)
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestDeleteLatestResolvesAliasToMostRecentlyCreated(t *testing.T) {
	r := NewRegistry[string]()
	r.Create("first")
	second := r.Create("second")

	assert.Equal(t, second, r.Delete(system.LatestInstanceID))
	_, err := r.Get(second)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestDeleteLatestBeforeAnyCreateIsIdempotentNoop(t *testing.T) {
	r := NewRegistry[string]()
	assert.Equal(t, "", r.Delete(system.LatestInstanceID))
}
