// Package shop is the application root: it owns the in-memory dataset and
// the file synchronizer, and saves after every change.
package shop

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kittclouds/garagebook/internal/dataset"
)

var (
	// ErrInvalidRecord wraps every validation failure.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDuplicateChassis is returned when another vehicle has the chassis id.
	ErrDuplicateChassis = errors.New("duplicate chassis id")

	// ErrRecordNotFound is returned when deleting an unknown id.
	ErrRecordNotFound = errors.New("record not found")
)

// Screen is what the user sees after Start.
type Screen int

const (
	// ScreenUnsupported: persistence unavailable, data lives in memory only.
	ScreenUnsupported Screen = iota
	// ScreenChooseFile: no remembered file; create or open one.
	ScreenChooseFile
	// ScreenConnect: a file is remembered; loading it needs a user action.
	ScreenConnect
)

func (s Screen) String() string {
	switch s {
	case ScreenChooseFile:
		return "choose-file"
	case ScreenConnect:
		return "connect"
	default:
		return "unsupported"
	}
}

// Synchronizer is the persistence the app depends on.
type Synchronizer interface {
	Initialize(ctx context.Context) dataset.Dataset
	LoadConnectedFileContent(ctx context.Context) (dataset.Dataset, error)
	SelectNewFile(ctx context.Context) bool
	LoadFromExistingFile(ctx context.Context) (*dataset.Dataset, error)
	Persist(ctx context.Context, d dataset.Dataset) error
	IsConnected() bool
	SupportsPersistence() bool
	FileName() string
}

// App holds the shop's records.
type App struct {
	sync     Synchronizer
	log      *zap.SugaredLogger
	now      func() time.Time
	validate *validator.Validate

	// mu also orders persists, so the file never goes back in time.
	mu   sync.Mutex
	data dataset.Dataset
}

// Option configures an App.
type Option func(*App)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(a *App) {
		if log != nil {
			a.log = log
		}
	}
}

// WithClock overrides time.Now for date validation.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates an App over s.
func New(s Synchronizer, opts ...Option) *App {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	a := &App{
		sync:     s,
		log:      zap.NewNop().Sugar(),
		now:      time.Now,
		validate: v,
		data:     dataset.Empty(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start restores the remembered file connection and picks the first screen.
func (a *App) Start(ctx context.Context) Screen {
	d := a.sync.Initialize(ctx)
	a.replace(d)

	switch {
	case !a.sync.SupportsPersistence():
		return ScreenUnsupported
	case a.sync.IsConnected():
		return ScreenConnect
	default:
		return ScreenChooseFile
	}
}

// AccessSavedFile loads the remembered file. Call it from a user action.
func (a *App) AccessSavedFile(ctx context.Context) error {
	d, err := a.sync.LoadConnectedFileContent(ctx)
	if err != nil {
		return err
	}
	a.replace(d)
	return nil
}

// CreateFile asks for a new file and writes the current data to it.
// It reports false when the user cancelled.
func (a *App) CreateFile(ctx context.Context) (bool, error) {
	if !a.sync.SelectNewFile(ctx) {
		return false, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return true, a.persistLocked(ctx)
}

// OpenFile asks for an existing file, adopts its data and rewrites it in
// the canonical format. It reports false when the user cancelled.
func (a *App) OpenFile(ctx context.Context) (bool, error) {
	d, err := a.sync.LoadFromExistingFile(ctx)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = d.Clone()
	return true, a.persistLocked(ctx)
}

// StatusLine is the save indicator text, empty when not connected.
func (a *App) StatusLine() string {
	if !a.sync.IsConnected() {
		return ""
	}
	return "Auto-saving to file: " + a.sync.FileName()
}

// Data returns a copy of the current dataset.
func (a *App) Data() dataset.Dataset {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.Clone()
}

func (a *App) replace(d dataset.Dataset) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = d.Clone()
}

// persistLocked saves the current data. The in-memory change is kept
// even if the write fails.
func (a *App) persistLocked(ctx context.Context) error {
	if err := a.sync.Persist(ctx, a.data.Clone()); err != nil {
		a.log.Errorw("failed to save data", "error", err)
		return fmt.Errorf("saving data: %w", err)
	}
	return nil
}

// =============================================================================
// Vehicles
// =============================================================================

// SaveVehicle adds v, or replaces the vehicle with the same id, then
// saves. A new vehicle gets a fresh id.
func (a *App) SaveVehicle(ctx context.Context, v dataset.Vehicle) (dataset.Vehicle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if v.ID == "" {
		v.ID = dataset.NewID()
	}
	if err := a.validateVehicle(v); err != nil {
		return v, err
	}
	for _, other := range a.data.Vehicles {
		if other.ChassisID == v.ChassisID && other.ID != v.ID {
			return v, fmt.Errorf("%w: vehicle with chassis %q already exists, owner: %s",
				ErrDuplicateChassis, v.ChassisID, other.OwnerName)
		}
	}

	if i := indexVehicle(a.data.Vehicles, v.ID); i >= 0 {
		a.data.Vehicles[i] = v
	} else {
		a.data.Vehicles = append(a.data.Vehicles, v)
	}
	return v, a.persistLocked(ctx)
}

// DeleteVehicle removes the vehicle and all of its services.
func (a *App) DeleteVehicle(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := indexVehicle(a.data.Vehicles, id)
	if i < 0 {
		return fmt.Errorf("vehicle %s: %w", id, ErrRecordNotFound)
	}
	a.data.Vehicles = append(a.data.Vehicles[:i:i], a.data.Vehicles[i+1:]...)

	kept := a.data.Services[:0:0]
	for _, s := range a.data.Services {
		if s.VehicleID != id {
			kept = append(kept, s)
		}
	}
	a.data.Services = kept
	return a.persistLocked(ctx)
}

// Vehicles returns all vehicles, newest id first.
func (a *App) Vehicles() []dataset.Vehicle {
	a.mu.Lock()
	out := append([]dataset.Vehicle(nil), a.data.Vehicles...)
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Vehicle looks a vehicle up by id.
func (a *App) Vehicle(id string) (dataset.Vehicle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := indexVehicle(a.data.Vehicles, id); i >= 0 {
		return a.data.Vehicles[i], true
	}
	return dataset.Vehicle{}, false
}

func (a *App) validateVehicle(v dataset.Vehicle) error {
	if err := a.validate.Struct(v); err != nil {
		return validationError(err)
	}
	maxYear := a.now().Year() + 10
	if v.Year < 1900 || v.Year > maxYear {
		return fmt.Errorf("%w: vehicle year must be between 1900 and %d", ErrInvalidRecord, maxYear)
	}
	return nil
}

func indexVehicle(vs []dataset.Vehicle, id string) int {
	for i, v := range vs {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// Services
// =============================================================================

// SaveService adds s, or replaces the service with the same id, then
// saves. The vehicle is not required to exist.
func (a *App) SaveService(ctx context.Context, s dataset.Service) (dataset.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.ID == "" {
		s.ID = dataset.NewID()
	}
	if err := a.validateService(s); err != nil {
		return s, err
	}

	if i := indexService(a.data.Services, s.ID); i >= 0 {
		a.data.Services[i] = s
	} else {
		a.data.Services = append(a.data.Services, s)
	}
	return s, a.persistLocked(ctx)
}

// DeleteService removes one service.
func (a *App) DeleteService(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := indexService(a.data.Services, id)
	if i < 0 {
		return fmt.Errorf("service %s: %w", id, ErrRecordNotFound)
	}
	a.data.Services = append(a.data.Services[:i:i], a.data.Services[i+1:]...)
	return a.persistLocked(ctx)
}

// Services returns all services, most recent date first.
func (a *App) Services() []dataset.Service {
	return a.servicesWhere(func(dataset.Service) bool { return true })
}

// ServicesFor returns the services of one vehicle, most recent first.
func (a *App) ServicesFor(vehicleID string) []dataset.Service {
	return a.servicesWhere(func(s dataset.Service) bool { return s.VehicleID == vehicleID })
}

// ServiceCount is the number of services recorded for a vehicle.
func (a *App) ServiceCount(vehicleID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range a.data.Services {
		if s.VehicleID == vehicleID {
			n++
		}
	}
	return n
}

func (a *App) servicesWhere(keep func(dataset.Service) bool) []dataset.Service {
	a.mu.Lock()
	var out []dataset.Service
	for _, s := range a.data.Services {
		if keep(s) {
			out = append(out, s)
		}
	}
	a.mu.Unlock()

	// YYYY-MM-DD sorts lexically.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (a *App) validateService(s dataset.Service) error {
	if err := a.validate.Struct(s); err != nil {
		return validationError(err)
	}
	date, err := time.ParseInLocation(time.DateOnly, s.Date, time.Local)
	if err != nil {
		return fmt.Errorf("%w: date: %v", ErrInvalidRecord, err)
	}
	if date.After(a.now().AddDate(1, 0, 0)) {
		return fmt.Errorf("%w: service date cannot be more than 1 year in the future", ErrInvalidRecord)
	}
	return nil
}

func indexService(ss []dataset.Service, id string) int {
	for i, s := range ss {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// validationError turns validator output into one readable error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "min":
			msgs = append(msgs, fe.Field()+" cannot be negative")
		case "datetime":
			msgs = append(msgs, fe.Field()+" must be YYYY-MM-DD")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, ", "))
}
