package fsaccess

import (
	"context"
	"testing"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T, chooser *StaticChooser, opts ...LocalOption) (*LocalHost, hackpadfs.FS) {
	t.Helper()
	fs, err := mem.NewFS()
	require.NoError(t, err)
	return NewLocalHost(fs, chooser, opts...), fs
}

func TestSupported(t *testing.T) {
	assert.False(t, Supported(nil))

	fs, err := mem.NewFS()
	require.NoError(t, err)
	assert.False(t, Supported(NewLocalHost(fs, nil)))
	assert.True(t, Supported(NewLocalHost(fs, &StaticChooser{})))
}

func TestParsePermissionState(t *testing.T) {
	for _, s := range []string{"granted", "prompt", "denied"} {
		p, err := ParsePermissionState(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.String())
	}
	_, err := ParsePermissionState("maybe")
	assert.Error(t, err)
}

func TestLocalHost_SavePickerCreatesGrantedFile(t *testing.T) {
	ctx := context.Background()
	host, fs := newTestHost(t, &StaticChooser{SavePath: "records/shop"})

	h, err := host.ShowSaveFilePicker(ctx, JSONPickerOptions("mechanic-shop-data.json"))
	require.NoError(t, err)
	assert.Equal(t, "shop.json", h.Name())

	_, err = hackpadfs.Stat(fs, "records/shop.json")
	require.NoError(t, err, "save picker should create the file")

	p, err := h.QueryPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)

	text, err := h.ReadText(ctx)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestLocalHost_PickerAborted(t *testing.T) {
	ctx := context.Background()
	host, _ := newTestHost(t, &StaticChooser{})

	_, err := host.ShowSaveFilePicker(ctx, JSONPickerOptions("x.json"))
	assert.ErrorIs(t, err, ErrAborted)

	_, err = host.ShowOpenFilePicker(ctx, JSONPickerOptions(""))
	assert.ErrorIs(t, err, ErrAborted)
}

func TestLocalHost_OpenPickerMissingFile(t *testing.T) {
	host, _ := newTestHost(t, &StaticChooser{OpenPath: "nope.json"})
	_, err := host.ShowOpenFilePicker(context.Background(), JSONPickerOptions(""))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalHost_WriteAllReplacesContent(t *testing.T) {
	ctx := context.Background()
	host, fs := newTestHost(t, &StaticChooser{SavePath: "shop.json"})

	h, err := host.ShowSaveFilePicker(ctx, JSONPickerOptions(""))
	require.NoError(t, err)

	require.NoError(t, h.WriteAll(ctx, []byte(`{"vehicles":[]}`)))
	require.NoError(t, h.WriteAll(ctx, []byte(`{}`)))

	text, err := h.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{}`, text)

	_, err = hackpadfs.Stat(fs, ".shop.json.tmp")
	assert.Error(t, err, "temp file should be renamed away")
}

func TestLocalHost_MissingFile(t *testing.T) {
	ctx := context.Background()
	host, fs := newTestHost(t, &StaticChooser{SavePath: "shop.json"})

	h, err := host.ShowSaveFilePicker(ctx, JSONPickerOptions(""))
	require.NoError(t, err)
	require.NoError(t, hackpadfs.Remove(fs, "shop.json"))

	_, err = h.ReadText(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	err = h.WriteAll(ctx, []byte("{}"))
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := h.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalHost_CodecRoundTrip(t *testing.T) {
	ctx := context.Background()
	host, _ := newTestHost(t, &StaticChooser{SavePath: "shop.json"})

	h, err := host.ShowSaveFilePicker(ctx, JSONPickerOptions(""))
	require.NoError(t, err)

	token, err := host.EncodeHandle(h)
	require.NoError(t, err)
	assert.Equal(t, "shop.json", token)

	decoded, err := host.DecodeHandle(token)
	require.NoError(t, err)
	assert.True(t, decoded == h, "decoded handle should be the canonical handle")

	_, err = host.DecodeHandle("../escape")
	assert.Error(t, err)
}

func TestLocalHost_RestoredHandleNeedsPrompt(t *testing.T) {
	ctx := context.Background()
	chooser := &StaticChooser{SavePath: "shop.json", Allow: true}
	first, fs := newTestHost(t, chooser)

	h, err := first.ShowSaveFilePicker(ctx, JSONPickerOptions(""))
	require.NoError(t, err)
	token, err := first.EncodeHandle(h)
	require.NoError(t, err)

	// A new host over the same files behaves like a reloaded page.
	second := NewLocalHost(fs, chooser)
	restored, err := second.DecodeHandle(token)
	require.NoError(t, err)

	p, err := restored.QueryPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionPrompt, p)

	p, err = restored.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)
	assert.Equal(t, []string{"shop.json"}, chooser.Confirmed)

	p, err = restored.QueryPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)
}

func TestLocalHost_RequestPermissionRefused(t *testing.T) {
	ctx := context.Background()
	chooser := &StaticChooser{Allow: false}
	host, fs := newTestHost(t, chooser)
	require.NoError(t, hackpadfs.WriteFullFile(fs, "shop.json", []byte("{}"), 0o644))

	h, err := host.DecodeHandle("shop.json")
	require.NoError(t, err)

	p, err := h.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, p)

	p, err = h.QueryPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, p)
}

func TestLocalHost_AutoGrant(t *testing.T) {
	host, fs := newTestHost(t, &StaticChooser{}, WithAutoGrant(true))
	require.NoError(t, hackpadfs.WriteFullFile(fs, "shop.json", []byte("{}"), 0o644))

	h, err := host.DecodeHandle("shop.json")
	require.NoError(t, err)
	p, err := h.QueryPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, IsTempFile("/data/.shop.json.tmp"))
	assert.False(t, IsTempFile("/data/shop.json"))
}
