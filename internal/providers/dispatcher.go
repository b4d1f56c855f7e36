package providers

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chapter-relay/pkg/apperr"
	"chapter-relay/pkg/logger"
	"chapter-relay/pkg/metrics"
	"chapter-relay/pkg/tracer"
)

// Dispatcher routes a request to the registered provider for an identifier.
type Dispatcher struct {
	providers map[string]Provider
}

// NewDispatcher registers ps by name. Later duplicates replace earlier ones.
func NewDispatcher(ps ...Provider) *Dispatcher {
	m := make(map[string]Provider, len(ps))
	for _, p := range ps {
		m[p.Name()] = p
	}
	return &Dispatcher{providers: m}
}

// Names returns the registered identifiers, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.providers))
	for n := range d.providers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the provider for name or an unsupported_provider error.
func (d *Dispatcher) Lookup(name string) (Provider, error) {
	p, ok := d.providers[name]
	if !ok {
		return nil, apperr.Newf(apperr.CodeUnsupportedProvider, "Unsupported provider: %s", name)
	}
	return p, nil
}

// Dispatch performs a single completion on the named provider. There are no
// retries: any failure is returned as a transport_failure unless the
// provider already classified it.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, req *Request) (string, error) {
	p, err := d.Lookup(name)
	if err != nil {
		return "", err
	}

	ctx, span := tracer.Start(ctx, "provider.dispatch", trace.WithAttributes(
		attribute.String("provider", name),
		attribute.String("model", req.Model),
	))
	start := time.Now()
	text, err := p.Complete(ctx, req)
	err = classify(name, err)
	tracer.End(span, err)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.DispatchDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Warn("provider call failed", "provider", name, "model", req.Model, "error", err)
		return "", err
	}
	logger.Debug("provider call finished", "provider", name, "model", req.Model, "chars", len(text), "elapsed", time.Since(start))
	return text, nil
}

// ListModels asks the named provider for its models.
func (d *Dispatcher) ListModels(ctx context.Context, name, credential string) ([]string, error) {
	p, err := d.Lookup(name)
	if err != nil {
		return nil, err
	}
	models, err := p.ListModels(ctx, credential)
	if err != nil {
		return nil, classify(name, err)
	}
	return models, nil
}

func classify(name string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(err, apperr.CodeTransportFailure, name+" request failed")
}
