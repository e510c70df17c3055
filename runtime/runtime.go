package runtime

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/binder"
	"github.com/wippyai/hostbridge/convert"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
)

// Config holds runtime settings.
type Config struct {
	// Logger is installed as the logger of the guest, binder and runtime
	// packages. Nil keeps the current loggers.
	Logger *zap.Logger
	// Print receives the output of the guest print builtin.
	Print func(msg string)
	// MaxSteps bounds each Exec or Eval. Zero means unbounded.
	MaxSteps uint64
	// AllowThreads releases the guest lock around host calls.
	AllowThreads bool
}

// DefaultConfig returns the configuration used by New without options.
func DefaultConfig() Config {
	return Config{AllowThreads: true}
}

// Option configures a Runtime.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithMaxSteps(n uint64) Option {
	return func(c *Config) { c.MaxSteps = n }
}

func WithPrint(fn func(msg string)) Option {
	return func(c *Config) { c.Print = fn }
}

// WithoutAllowThreads keeps the guest lock held during host calls.
func WithoutAllowThreads() Option {
	return func(c *Config) { c.AllowThreads = false }
}

var anyType = reflect.TypeFor[any]()

// Runtime ties a guest interpreter to the converter and binder that expose
// host functions to it.
type Runtime struct {
	guest  *guest.Runtime
	conv   *convert.Converter
	binder *binder.Binder
	hosts  *HostRegistry
}

func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger != nil {
		SetLogger(cfg.Logger)
		guest.SetLogger(cfg.Logger.Named("guest"))
		binder.SetLogger(cfg.Logger.Named("binder"))
	}

	var gopts []guest.Option
	if cfg.MaxSteps > 0 {
		gopts = append(gopts, guest.WithMaxSteps(cfg.MaxSteps))
	}
	if cfg.Print != nil {
		gopts = append(gopts, guest.WithPrint(cfg.Print))
	}
	g := guest.New(gopts...)
	conv := convert.New(g)

	var bopts []binder.Option
	if !cfg.AllowThreads {
		bopts = append(bopts, binder.WithoutAllowThreads())
	}
	b := binder.New(conv, bopts...)

	return &Runtime{
		guest:  g,
		conv:   conv,
		binder: b,
		hosts:  NewHostRegistry(g, b),
	}, nil
}

// Close releases the guest heap. Handles obtained from the runtime must
// not be used afterwards.
func (r *Runtime) Close(ctx context.Context) error {
	return r.guest.Close()
}

func (r *Runtime) Guest() *guest.Runtime         { return r.guest }
func (r *Runtime) Converter() *convert.Converter { return r.conv }
func (r *Runtime) Binder() *binder.Binder        { return r.binder }
func (r *Runtime) Hosts() *HostRegistry          { return r.hosts }

// RegisterFunc adds fn as an overload of namespace.name. Must be called
// before running scripts that use it.
func (r *Runtime) RegisterFunc(namespace, name string, fn any, sigs ...binder.Signature) error {
	return r.hosts.RegisterFunc(namespace, name, fn, sigs...)
}

func (r *Runtime) RegisterOverloads(namespace, name string, overloads []Overload) error {
	return r.hosts.RegisterOverloads(namespace, name, overloads)
}

// RegisterHost registers all exported methods of h as members of its
// namespace. Method names are converted from PascalCase to snake_case
// (GetValue -> get_value).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

func (r *Runtime) RegisterType(t reflect.Type, methods TypeMethods) error {
	return r.hosts.RegisterType(t, methods)
}

// SetGlobal converts v and binds it as a predeclared guest global.
func (r *Runtime) SetGlobal(name string, v any) error {
	r.guest.Lock()
	defer r.guest.Unlock()

	h, err := r.conv.ToGuest(v, nil)
	if err != nil {
		return err
	}
	defer h.Release()
	return r.guest.SetGlobal(name, h.Borrow())
}

// Exec runs a script and returns its globals converted to host values.
// Guest objects among them must be closed by the caller.
func (r *Runtime) Exec(ctx context.Context, filename string, src any) (map[string]any, error) {
	globals, err := r.guest.Exec(ctx, filename, src)
	if err != nil {
		return nil, guestError("exec "+filename, err)
	}

	r.guest.Lock()
	defer r.guest.Unlock()
	defer globals.Release()

	out := make(map[string]any, len(globals))
	for name, h := range globals {
		v, err := r.conv.ToHost(h.Borrow(), anyType, false)
		if err != nil {
			for _, prev := range out {
				convert.CloseObjects(reflect.ValueOf(prev))
			}
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Eval evaluates expr and converts the result to target. A nil target
// converts by the value's guest type.
func (r *Runtime) Eval(ctx context.Context, expr string, target reflect.Type) (any, error) {
	h, err := r.guest.Eval(ctx, expr)
	if err != nil {
		return nil, guestError("eval", err)
	}

	if target == nil {
		target = anyType
	}

	r.guest.Lock()
	defer r.guest.Unlock()
	defer h.Release()
	return r.conv.ToHost(h.Borrow(), target, false)
}

// guestError keeps the kind of a host failure raised inside guest code.
func guestError(detail string, err error) error {
	kind, ok := errors.KindOf(err)
	if !ok {
		kind = errors.KindInvalidInput
	}
	Logger().Debug("guest execution failed", zap.String("op", detail), zap.Error(err))
	return errors.Wrap(errors.PhaseGuest, kind, err, detail)
}
