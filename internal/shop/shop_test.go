package shop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/garagebook/internal/dataset"
	"github.com/kittclouds/garagebook/internal/filesync"
	"github.com/kittclouds/garagebook/internal/store"
	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

type env struct {
	fs      hackpadfs.FS
	chooser *fsaccess.StaticChooser
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fs, err := mem.NewFS()
	require.NoError(t, err)
	return &env{fs: fs, chooser: &fsaccess.StaticChooser{Allow: true}}
}

// app builds a fresh App, as if the program had just started. The
// remembered handle is decoded by the new host, so it carries no grant
// from an earlier run.
func (e *env) app() *App {
	host := fsaccess.NewLocalHost(e.fs, e.chooser)
	st := store.NewFileStore(e.fs, "handles", host)
	return New(filesync.New(host, st), WithClock(func() time.Time { return fixedNow }))
}

func (e *env) file(t *testing.T, name string) string {
	t.Helper()
	data, err := hackpadfs.ReadFile(e.fs, name)
	require.NoError(t, err)
	return string(data)
}

// connected returns an app already writing to shop.json.
func connected(t *testing.T) (*App, *env) {
	t.Helper()
	e := newEnv(t)
	e.chooser.SavePath = "shop.json"
	a := e.app()
	require.Equal(t, ScreenChooseFile, a.Start(context.Background()))
	ok, err := a.CreateFile(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return a, e
}

func golf() dataset.Vehicle {
	return dataset.Vehicle{OwnerName: "Ana Novak", Engine: "1.9 TDI", Year: 2004, ChassisID: "WVWZZZ1JZ4W000001"}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestStart_Screens(t *testing.T) {
	ctx := context.Background()

	a := New(filesync.New(nil, nil))
	assert.Equal(t, ScreenUnsupported, a.Start(ctx))
	assert.Empty(t, a.StatusLine())

	e := newEnv(t)
	assert.Equal(t, ScreenChooseFile, e.app().Start(ctx))

	e.chooser.SavePath = "shop.json"
	first := e.app()
	first.Start(ctx)
	_, err := first.CreateFile(ctx)
	require.NoError(t, err)

	assert.Equal(t, ScreenConnect, e.app().Start(ctx), "a remembered file needs a user action to load")
}

func TestCreateFile_WritesCurrentData(t *testing.T) {
	a, e := connected(t)
	assert.Equal(t, "Auto-saving to file: shop.json", a.StatusLine())
	assert.Equal(t, "{\n  \"vehicles\": [],\n  \"services\": []\n}\n", e.file(t, "shop.json"))
}

func TestCreateFile_Cancelled(t *testing.T) {
	e := newEnv(t)
	a := e.app()
	a.Start(context.Background())

	ok, err := a.CreateFile(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, a.StatusLine())
}

func TestAccessSavedFile_AfterRestart(t *testing.T) {
	ctx := context.Background()
	a, e := connected(t)
	v, err := a.SaveVehicle(ctx, golf())
	require.NoError(t, err)

	restarted := e.app()
	require.Equal(t, ScreenConnect, restarted.Start(ctx))
	assert.Empty(t, restarted.Vehicles(), "nothing is read before the user asks")

	require.NoError(t, restarted.AccessSavedFile(ctx))
	assert.Equal(t, []dataset.Vehicle{v}, restarted.Vehicles())
	assert.Equal(t, []string{"shop.json"}, e.chooser.Confirmed, "a new run asks for permission again")
	assert.Equal(t, "Auto-saving to file: shop.json", restarted.StatusLine())
}

func TestAccessSavedFile_Refused(t *testing.T) {
	ctx := context.Background()
	_, e := connected(t)
	e.chooser.Allow = false

	a := e.app()
	a.Start(ctx)
	err := a.AccessSavedFile(ctx)
	assert.ErrorIs(t, err, filesync.ErrPermissionDenied)
	assert.Empty(t, a.StatusLine())
}

func TestOpenFile_AdoptsAndRewrites(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, hackpadfs.WriteFullFile(e.fs, "old.json",
		[]byte(`{"vehicles":[{"id":"v1","ownerName":"Ana","engine":"1.6","year":1999,"chassisId":"C1"}]}`), 0o644))
	e.chooser.OpenPath = "old.json"

	a := e.app()
	a.Start(ctx)
	ok, err := a.OpenFile(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, a.Vehicles(), 1)
	assert.Contains(t, e.file(t, "old.json"), "\"services\": []", "missing keys are written back")
	assert.Equal(t, "Auto-saving to file: old.json", a.StatusLine())
}

func TestOpenFile_Malformed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, hackpadfs.WriteFullFile(e.fs, "bad.json", []byte("{oops"), 0o644))
	e.chooser.OpenPath = "bad.json"

	a := e.app()
	a.Start(ctx)
	ok, err := a.OpenFile(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, filesync.ErrMalformedContent)
}

// =============================================================================
// Vehicles
// =============================================================================

func TestSaveVehicle_AddAndUpdate(t *testing.T) {
	ctx := context.Background()
	a, e := connected(t)

	v, err := a.SaveVehicle(ctx, golf())
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Contains(t, e.file(t, "shop.json"), `"chassisId": "WVWZZZ1JZ4W000001"`)

	v.Engine = "2.0 TDI"
	_, err = a.SaveVehicle(ctx, v)
	require.NoError(t, err)
	require.Len(t, a.Vehicles(), 1)
	assert.Equal(t, "2.0 TDI", a.Vehicles()[0].Engine)
	assert.Contains(t, e.file(t, "shop.json"), `"engine": "2.0 TDI"`)
}

func TestSaveVehicle_DuplicateChassis(t *testing.T) {
	ctx := context.Background()
	a, _ := connected(t)

	_, err := a.SaveVehicle(ctx, golf())
	require.NoError(t, err)

	other := golf()
	other.OwnerName = "Marko Kos"
	_, err = a.SaveVehicle(ctx, other)
	require.ErrorIs(t, err, ErrDuplicateChassis)
	assert.Contains(t, err.Error(), "Ana Novak")
	assert.Len(t, a.Vehicles(), 1)
}

func TestSaveVehicle_Validation(t *testing.T) {
	ctx := context.Background()
	a, _ := connected(t)

	tests := map[string]func(v *dataset.Vehicle){
		"missing owner":  func(v *dataset.Vehicle) { v.OwnerName = "" },
		"missing engine": func(v *dataset.Vehicle) { v.Engine = "" },
		"missing year":   func(v *dataset.Vehicle) { v.Year = 0 },
		"too old":        func(v *dataset.Vehicle) { v.Year = 1899 },
		"too new":        func(v *dataset.Vehicle) { v.Year = fixedNow.Year() + 11 },
		"no chassis":     func(v *dataset.Vehicle) { v.ChassisID = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			v := golf()
			mutate(&v)
			_, err := a.SaveVehicle(ctx, v)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
	assert.Empty(t, a.Vehicles())

	v := golf()
	v.Year = fixedNow.Year() + 10
	_, err := a.SaveVehicle(ctx, v)
	assert.NoError(t, err, "upper year bound is inclusive")
}

func TestDeleteVehicle_Cascades(t *testing.T) {
	ctx := context.Background()
	a, e := connected(t)

	v, err := a.SaveVehicle(ctx, golf())
	require.NoError(t, err)
	_, err = a.SaveService(ctx, dataset.Service{VehicleID: v.ID, ServiceName: "Oil", Mileage: 100, Date: "2025-01-10"})
	require.NoError(t, err)
	_, err = a.SaveService(ctx, dataset.Service{VehicleID: "other", ServiceName: "Tyres", Mileage: 5, Date: "2025-02-10"})
	require.NoError(t, err)

	require.NoError(t, a.DeleteVehicle(ctx, v.ID))
	assert.Empty(t, a.Vehicles())
	require.Len(t, a.Services(), 1)
	assert.Equal(t, "Tyres", a.Services()[0].ServiceName)
	assert.NotContains(t, e.file(t, "shop.json"), "Oil")

	assert.ErrorIs(t, a.DeleteVehicle(ctx, v.ID), ErrRecordNotFound)
}

func TestVehicles_NewestFirst(t *testing.T) {
	ctx := context.Background()
	a, _ := connected(t)

	var added []string
	for i := 0; i < 8; i++ {
		v := golf()
		v.ChassisID = fmt.Sprintf("CHASSIS%02d", i)
		saved, err := a.SaveVehicle(ctx, v)
		require.NoError(t, err)
		added = append(added, saved.ID)
	}

	var listed []string
	for _, v := range a.Vehicles() {
		listed = append(listed, v.ID)
	}
	slices.Reverse(added)
	assert.Equal(t, added, listed)
}

func TestVehicles_SortedByIDDescending(t *testing.T) {
	ctx := context.Background()
	a, _ := connected(t)
	for i, id := range []string{"b", "c", "a"} {
		v := golf()
		v.ID = id
		v.ChassisID = string(rune('X' + i))
		_, err := a.SaveVehicle(ctx, v)
		require.NoError(t, err)
	}

	var ids []string
	for _, v := range a.Vehicles() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	got, ok := a.Vehicle("b")
	assert.True(t, ok)
	assert.Equal(t, "b", got.ID)
	_, ok = a.Vehicle("zzz")
	assert.False(t, ok)
}

// =============================================================================
// Services
// =============================================================================

func TestSaveService_Validation(t *testing.T) {
	ctx := context.Background()
	a, _ := connected(t)

	ok := dataset.Service{VehicleID: "v1", ServiceName: "Oil", Mileage: 0, Date: "2025-06-01"}
	tests := map[string]func(s *dataset.Service){
		"no vehicle":       func(s *dataset.Service) { s.VehicleID = "" },
		"no name":          func(s *dataset.Service) { s.ServiceName = "" },
		"negative mileage": func(s *dataset.Service) { s.Mileage = -1 },
		"bad date":         func(s *dataset.Service) { s.Date = "15.6.2025" },
		"far future":       func(s *dataset.Service) { s.Date = "2026-06-16" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := ok
			mutate(&s)
			_, err := a.SaveService(ctx, s)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}

	s := ok
	s.Date = "2026-06-15"
	_, err := a.SaveService(ctx, s)
	assert.NoError(t, err, "exactly one year ahead is allowed")
}

func TestServices_Queries(t *testing.T) {
	ctx := context.Background()
	a, _ := connected(t)

	for _, s := range []dataset.Service{
		{VehicleID: "v1", ServiceName: "Oil", Date: "2024-01-01"},
		{VehicleID: "v1", ServiceName: "Brakes", Date: "2025-03-01"},
		{VehicleID: "v2", ServiceName: "Tyres", Date: "2024-06-01"},
	} {
		_, err := a.SaveService(ctx, s)
		require.NoError(t, err)
	}

	var names []string
	for _, s := range a.Services() {
		names = append(names, s.ServiceName)
	}
	assert.Equal(t, []string{"Brakes", "Tyres", "Oil"}, names)

	forV1 := a.ServicesFor("v1")
	require.Len(t, forV1, 2)
	assert.Equal(t, "Brakes", forV1[0].ServiceName)
	assert.Equal(t, 2, a.ServiceCount("v1"))
	assert.Equal(t, 0, a.ServiceCount("nope"))

	require.NoError(t, a.DeleteService(ctx, forV1[0].ID))
	assert.Equal(t, 1, a.ServiceCount("v1"))
	assert.ErrorIs(t, a.DeleteService(ctx, forV1[0].ID), ErrRecordNotFound)
}

// =============================================================================
// Persistence failures
// =============================================================================

type failingSync struct {
	filesync.Synchronizer
	err error
}

func (f *failingSync) Persist(ctx context.Context, d dataset.Dataset) error { return f.err }
func (f *failingSync) IsConnected() bool                                   { return true }
func (f *failingSync) FileName() string                                    { return "shop.json" }

func TestFailedPersistKeepsChange(t *testing.T) {
	boom := errors.New("disk full")
	a := New(&failingSync{err: boom}, WithClock(func() time.Time { return fixedNow }))

	v, err := a.SaveVehicle(context.Background(), golf())
	assert.ErrorIs(t, err, boom)
	got, ok := a.Vehicle(v.ID)
	assert.True(t, ok, "the in-memory edit is not rolled back")
	assert.Equal(t, "Ana Novak", got.OwnerName)
}

func TestMemoryOnlyMode(t *testing.T) {
	ctx := context.Background()
	a := New(filesync.New(nil, nil), WithClock(func() time.Time { return fixedNow }))
	require.Equal(t, ScreenUnsupported, a.Start(ctx))

	_, err := a.SaveVehicle(ctx, golf())
	require.NoError(t, err)
	assert.Len(t, a.Vehicles(), 1)
}
