package cachekit

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/cachekit/codec"
	"github.com/unkn0wn-root/cachekit/keygen"
	pr "github.com/unkn0wn-root/cachekit/provider"
	"github.com/unkn0wn-root/cachekit/ttl"
)

// KeySeparator sits between namespace and generated key in storage keys.
const KeySeparator = "::"

type manager struct {
	provider       pr.Provider
	codec          codec.Codec[any]
	keys           keygen.Generator
	policy         *ttl.Policy
	prefix         string
	log            Logger
	errs           ErrorHandler
	computeSetCost SetCostFunc
	enabled        bool
	rejectNil      bool
	opTimeout      time.Duration
}

func newManager(opts Options) (*manager, error) {
	if opts.Provider == nil {
		return nil, errors.New("cachekit: provider is required")
	}
	if opts.OpTimeout < 0 {
		return nil, errors.Newf("cachekit: negative op timeout %v", opts.OpTimeout)
	}

	m := &manager{
		provider:  opts.Provider,
		prefix:    opts.KeyPrefix,
		enabled:   !opts.Disabled,
		rejectNil: opts.RejectNil,
		opTimeout: opts.OpTimeout,
	}

	m.log = loggerOrNop(opts.Logger)
	m.errs = handlerOr(opts.ErrorHandler, m.log)
	m.keys = keyGenOrDefault(opts.KeyGen)
	m.codec = codecOrTyped(opts.Codec)
	if err := registerTypes(m.codec, opts.Types); err != nil {
		return nil, err
	}
	m.computeSetCost = opts.ComputeSetCost
	if m.computeSetCost == nil {
		m.computeSetCost = unitCost
	}

	if opts.Policy != nil {
		m.policy = opts.Policy
	} else {
		overrides, diags := ttl.BuildOverrides(opts.Expires)
		for _, d := range diags {
			m.log.Warn("ignoring cache expiration override", Fields{
				"namespace": d.Namespace,
				"value":     fmt.Sprint(d.Value),
				"err":       d.Err,
			})
		}
		p, err := ttl.NewPolicy(opts.DefaultTTL, overrides)
		if err != nil {
			return nil, err
		}
		m.policy = p
	}

	m.log.Debug("cache manager ready", Fields{
		"codec":      codec.NameOf(m.codec),
		"defaultTTL": m.policy.Default().String(),
		"overrides":  len(m.policy.Namespaces()),
		"enabled":    m.enabled,
	})
	return m, nil
}

func (m *manager) Enabled() bool { return m.enabled }

func (m *manager) Close(ctx context.Context) error {
	return m.provider.Close(ctx)
}

func (m *manager) TTL(namespace string) time.Duration { return m.policy.Resolve(namespace) }

func (m *manager) Get(ctx context.Context, namespace, identity string, args []any) (any, bool) {
	if !m.enabled {
		return nil, false
	}
	k, err := m.storageKey(namespace, identity, args)
	if err != nil {
		m.errs.HandleError(OpGet, namespace, "", err)
		return nil, false
	}

	qctx, cancel := m.opContext(ctx)
	defer cancel()
	raw, ok, err := m.provider.Get(qctx, k)
	if err != nil {
		m.errs.HandleError(OpGet, namespace, k, &StoreError{Op: OpGet, Namespace: namespace, Key: k, Err: err})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	v, err := m.codec.Decode(raw)
	if err != nil {
		m.errs.HandleError(OpGet, namespace, k, asSerialization("decode", "", err))
		// self-heal: an undecodable entry would miss forever
		if derr := m.provider.Del(qctx, k); derr != nil {
			m.log.Debug("self-heal delete failed", Fields{"key": k, "err": derr})
		}
		return nil, false
	}
	return v, true
}

func (m *manager) Put(ctx context.Context, namespace, identity string, args []any, value any) error {
	if !m.enabled {
		return nil
	}
	if value == nil && m.rejectNil {
		return errors.Wrapf(ErrNilValue, "namespace %q", namespace)
	}
	k, err := m.storageKey(namespace, identity, args)
	if err != nil {
		return err
	}
	raw, err := m.codec.Encode(value)
	if err != nil {
		err = asSerialization("encode", fmt.Sprintf("%T", value), err)
		m.errs.HandleError(OpPut, namespace, k, err)
		return err
	}

	exp := m.policy.Resolve(namespace)
	qctx, cancel := m.opContext(ctx)
	defer cancel()
	ok, err := m.provider.Set(qctx, k, raw, m.computeSetCost(k, raw), exp)
	if err != nil {
		m.errs.HandleError(OpPut, namespace, k, &StoreError{Op: OpPut, Namespace: namespace, Key: k, Err: err})
		return nil
	}
	if !ok {
		m.log.Debug("Put rejected by provider (pressure)", Fields{"key": k})
	}
	return nil
}

func (m *manager) Evict(ctx context.Context, namespace, identity string, args []any) {
	if !m.enabled {
		return
	}
	k, err := m.storageKey(namespace, identity, args)
	if err != nil {
		m.errs.HandleError(OpEvict, namespace, "", err)
		return
	}
	qctx, cancel := m.opContext(ctx)
	defer cancel()
	if err := m.provider.Del(qctx, k); err != nil {
		m.errs.HandleError(OpEvict, namespace, k, &StoreError{Op: OpEvict, Namespace: namespace, Key: k, Err: err})
	}
}

func (m *manager) Clear(ctx context.Context, namespace string) {
	if !m.enabled {
		return
	}
	prefix := m.namespacePrefix(namespace)
	if namespace == "" {
		m.errs.HandleError(OpClear, namespace, prefix, errors.Wrap(ErrInvalidArgument, "empty namespace"))
		return
	}
	ks, ok := m.provider.(pr.PrefixDeleter)
	if !ok {
		m.errs.HandleError(OpClear, namespace, prefix, errors.Wrapf(ErrUnsupported, "%T has no prefix delete", m.provider))
		return
	}
	qctx, cancel := m.opContext(ctx)
	defer cancel()
	n, err := ks.DelPrefix(qctx, prefix)
	if err != nil {
		m.errs.HandleError(OpClear, namespace, prefix, &StoreError{Op: OpClear, Namespace: namespace, Key: prefix, Err: err})
		return
	}
	m.log.Debug("cleared namespace", Fields{"namespace": namespace, "deleted": n})
}

func (m *manager) storageKey(namespace, identity string, args []any) (string, error) {
	if namespace == "" {
		return "", errors.Wrap(ErrInvalidArgument, "empty namespace")
	}
	key, err := m.keys.Generate(identity, args...)
	if err != nil {
		return "", err
	}
	return m.namespacePrefix(namespace) + key, nil
}

func (m *manager) namespacePrefix(namespace string) string {
	return m.prefix + namespace + KeySeparator
}

func (m *manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.opTimeout)
}

// asSerialization wraps errors from codecs that do not produce a
// *SerializationError themselves.
func asSerialization(op, typ string, err error) error {
	var se *SerializationError
	if errors.As(err, &se) {
		return err
	}
	return &SerializationError{Op: op, Type: typ, Err: err}
}
