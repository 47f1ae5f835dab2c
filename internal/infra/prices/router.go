package prices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Venue interface {
	Name() string
	Quote(ctx context.Context, symbol string) (domain.PriceSample, error)
}

// Router dispatches price requests to named venues. GetPrice uses the
// primary venue.
type Router struct {
	venues  map[string]Venue
	names   []string
	primary string
	logger  *zap.Logger
	now     func() time.Time
}

func NewRouter(primary string, logger *zap.Logger, venues ...Venue) (*Router, error) {
	r := &Router{
		venues:  make(map[string]Venue, len(venues)),
		primary: normalize(primary),
		logger:  logger,
		now:     time.Now,
	}
	for _, venue := range venues {
		name := normalize(venue.Name())
		if _, exists := r.venues[name]; exists {
			return nil, fmt.Errorf("%w: duplicate price source %q", domain.ErrInvalidConfig, name)
		}
		r.venues[name] = venue
		r.names = append(r.names, name)
	}
	if _, ok := r.venues[r.primary]; !ok {
		return nil, fmt.Errorf("%w: primary source %q is not registered (have %s)", domain.ErrInvalidConfig, primary, strings.Join(r.names, ", "))
	}
	return r, nil
}

func (r *Router) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Router) Primary() string {
	return r.primary
}

func (r *Router) GetPrice(ctx context.Context, symbol string) (domain.PriceSample, error) {
	return r.quote(ctx, r.primary, symbol)
}

func (r *Router) GetPriceFromSource(ctx context.Context, symbol, source string) (domain.PriceSample, error) {
	name := normalize(source)
	if !lo.Contains(r.names, name) {
		return domain.PriceSample{}, fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
	}
	return r.quote(ctx, name, symbol)
}

func (r *Router) quote(ctx context.Context, name, symbol string) (domain.PriceSample, error) {
	sample, err := r.venues[name].Quote(ctx, symbol)
	if err != nil {
		r.logger.Debug("quote failed", zap.String("source", name), zap.String("symbol", symbol), zap.Error(err))
		return domain.PriceSample{}, fmt.Errorf("%s %s: %w", name, symbol, err)
	}
	sample.Symbol = symbol
	sample.Source = name
	if sample.ObservedAt.IsZero() {
		sample.ObservedAt = r.now()
	}
	return sample, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
