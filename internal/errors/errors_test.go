package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndKind(t *testing.T) {
	err := New(KindNotFound, "instance missing")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, GetKind(err))
	assert.Equal(t, "instance missing", err.Error())
}

func TestWrapPreservesChain(t *testing.T) {
	base := errors.New("dial refused")
	wrapped := Wrap(base, KindTransport, "redistribute_out call failed")

	assert.Equal(t, KindTransport, GetKind(wrapped))
	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, "redistribute_out call failed: dial refused", wrapped.Error())
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindInternal, "unreachable"))
	assert.Nil(t, Wrapf(nil, KindInternal, "unreachable %d", 1))
	assert.Nil(t, Attr(nil, "key", "val"))
}

func TestAttrAccumulates(t *testing.T) {
	err := New(KindFieldMissing, "missing prefix")
	err = Attr(err, "field", "prefix")
	err = Attr(err, "route_source", "RIP1")

	attrs := GetAttributes(err)
	assert.Equal(t, "prefix", attrs["field"])
	assert.Equal(t, "RIP1", attrs["route_source"])
}

func TestAttrOnPlainErrorWraps(t *testing.T) {
	base := errors.New("boom")
	err := Attr(base, "k", "v")
	assert.Equal(t, KindInternal, GetKind(err))
	assert.Equal(t, "v", GetAttributes(err)["k"])
}

func TestGetKindUnknownForForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, GetKind(errors.New("not ours")))
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInternal:      "internal",
		KindValidation:    "validation",
		KindNotFound:      "not_found",
		KindConfigInvalid: "config_invalid",
		KindFieldMissing:  "field_missing",
		KindFieldUnknown:  "field_unknown",
		KindProtocolDecode: "protocol_decode",
		KindTimeout:       "timeout",
		KindTransport:     "transport",
		KindUnknown:       "unknown",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
