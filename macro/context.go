package macro

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"currency-features/models"
	"currency-features/observability"
)

// ErrAlignmentMiss is returned when an index has no observation on or before a date
var ErrAlignmentMiss = errors.New("no observation on or before date")

// AlignNearestPrior returns the close of the bar dated exactly on date, or else of the
// latest bar strictly before it. Bars must be ascending. A later bar is never used.
func AlignNearestPrior(index []models.Bar, date time.Time) (float64, bool) {
	date = models.TruncateDay(date)
	// first bar after date
	i := sort.Search(len(index), func(i int) bool { return index[i].Date.After(date) })
	if i == 0 {
		return 0, false
	}
	return index[i-1].Close, true
}

// Context is the macro data for one run. It is built once by Load and only read
// afterwards, so a single Context is shared by every worker.
type Context struct {
	rates     map[string]RateSet
	dxy       models.PriceSeries
	dxyLevel  *float64
	sentiment *float64
	news      string
}

// NewContext assembles a Context from already-fetched values. dxyLevel is used on
// every date when dxy is empty.
func NewContext(rates map[string]RateSet, dxy models.PriceSeries, dxyLevel, sentiment *float64, news string) *Context {
	normalized := make(map[string]RateSet, len(rates))
	for k, v := range rates {
		normalized[strings.ToUpper(k)] = v
	}
	return &Context{
		rates:     normalized,
		dxy:       dxy,
		dxyLevel:  dxyLevel,
		sentiment: sentiment,
		news:      news,
	}
}

// Load queries provider for every currency and the shared market inputs. Source
// failures leave the affected fields null; only cancellation of ctx is returned.
func Load(ctx context.Context, provider Provider, currencies []string, start, end time.Time) (*Context, error) {
	rates := make(map[string]RateSet, len(currencies))
	for _, c := range currencies {
		c = strings.ToUpper(c)
		if _, done := rates[c]; done {
			continue
		}
		set, err := provider.Rates(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("loading rates: %w", ctx.Err())
			}
			observability.Warn("macro rates unavailable", "currency", c, "error", err)
		}
		rates[c] = set
	}

	dxy, err := provider.DollarIndex(ctx, start, end)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("loading dollar index: %w", ctx.Err())
		}
		observability.Warn("dollar index unavailable", "error", err)
		dxy = models.PriceSeries{}
	}
	var dxyLevel *float64
	if lp, ok := provider.(levelProvider); ok && dxy.Len() == 0 {
		level := lp.DollarIndexLevel()
		dxyLevel = &level
	}

	var sentiment *float64
	if v, err := provider.Sentiment(ctx); err == nil {
		sentiment = &v
	} else {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("loading sentiment: %w", ctx.Err())
		}
		observability.Warn("market sentiment unavailable", "error", err)
	}

	news, err := provider.NewsDigest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("loading news digest: %w", ctx.Err())
		}
		observability.Warn("economic news unavailable", "error", err)
	}

	observability.Info("macro context loaded",
		"currencies", len(rates),
		"dxy_bars", dxy.Len(),
		"has_sentiment", sentiment != nil)

	return NewContext(rates, dxy, dxyLevel, sentiment, news), nil
}

// DollarIndexAt returns the dollar index aligned to date
func (c *Context) DollarIndexAt(date time.Time) (float64, error) {
	if c.dxy.Len() == 0 {
		if c.dxyLevel != nil {
			return *c.dxyLevel, nil
		}
		return 0, ErrAlignmentMiss
	}
	v, ok := AlignNearestPrior(c.dxy.Bars, date)
	if !ok {
		return 0, fmt.Errorf("dollar index at %s: %w", date.Format(models.DateLayout), ErrAlignmentMiss)
	}
	return v, nil
}

// Snapshot returns the macro fields for one (date, currency) row. A nil Context
// yields an empty snapshot.
func (c *Context) Snapshot(date time.Time, currency string) models.MacroSnapshot {
	snap := models.MacroSnapshot{Date: models.TruncateDay(date), Currency: strings.ToUpper(currency)}
	if c == nil {
		return snap
	}

	if set, ok := c.rates[snap.Currency]; ok {
		snap.InterestRate = set.InterestRate
		snap.Inflation = set.Inflation
	}
	if v, err := c.DollarIndexAt(date); err == nil {
		snap.DXY = &v
	}
	snap.MarketSentiment = c.sentiment
	snap.EconomicNews = c.news
	return snap
}
