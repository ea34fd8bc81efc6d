// Package marketsource implements the Market Source (spec §6 "Market
// Source (consumed)"): a pull interface yielding newly discovered markets
// filtered by liquidity, 24h volume, end-date window and excluded slugs.
// There is no filter by asset.
//
// Unlike the market-making scanner it is adapted from, this source does
// not rank candidates — the priority scheduler (C7) already orders
// markets by time-to-expiry, so ranking discovered markets here would be
// redundant work thrown away downstream. Every market surviving the hard
// filters is surfaced once and left to the state machine and scheduler to
// prioritize.
package marketsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// gammaMarket is the JSON shape returned by the venue's market listing API.
type gammaMarket struct {
	ID              string  `json:"id"`
	Question        string  `json:"question"`
	ConditionID     string  `json:"conditionId"`
	Slug            string  `json:"slug"`
	Active          bool    `json:"active"`
	Closed          bool    `json:"closed"`
	AcceptingOrders bool    `json:"acceptingOrders"`
	EnableOrderBook bool    `json:"enableOrderBook"`
	EndDate         string  `json:"endDate"`
	Liquidity       string  `json:"liquidity"`
	Volume24hr      float64 `json:"volume24hr"`
	ClobTokenIds    string  `json:"clobTokenIds"`
	NegRisk         bool    `json:"negRisk"`
	OrderMinSize    float64 `json:"orderMinSize"`
	OrderPriceMinTickSize float64 `json:"orderPriceMinTickSize"`
}

// Source periodically polls the venue's market listing API and yields
// every newly discovered, still-unseen market that passes the hard
// filters.
type Source struct {
	httpClient *resty.Client
	cfg        config.MarketSourceConfig
	tokenSide  types.TokenSide
	logger     *slog.Logger
	resultCh   chan types.MarketRef

	seen map[string]bool
}

// New creates a market source. tokenSide (from the eligibility config)
// picks which outcome token of the pair the engine hunts — clobTokenIds is
// ordered [yes, no] by the venue's Gamma API, the same convention the
// teacher's scanner assumed when splitting it into YesTokenID/NoTokenID.
func New(cfg config.Config, logger *slog.Logger) *Source {
	client := resty.New().
		SetBaseURL(cfg.Venue.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Source{
		httpClient: client,
		cfg:        cfg.MarketSource,
		tokenSide:  types.TokenSide(cfg.Eligibility.TokenSide),
		logger:     logger.With("component", "market_source"),
		resultCh:   make(chan types.MarketRef, 64),
		seen:       make(map[string]bool),
	}
}

// Markets returns the channel the engine reads newly discovered markets
// from.
func (s *Source) Markets() <-chan types.MarketRef {
	return s.resultCh
}

// Run starts the polling loop. Blocks until ctx is cancelled.
func (s *Source) Run(ctx context.Context) {
	s.poll(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Source) poll(ctx context.Context) {
	markets, err := s.fetchMarkets(ctx)
	if err != nil {
		s.logger.Error("market source poll failed", "error", err)
		return
	}

	filtered := s.filter(markets)
	emitted := 0
	for _, ref := range filtered {
		if s.seen[ref.TokenID] {
			continue
		}
		s.seen[ref.TokenID] = true
		select {
		case s.resultCh <- ref:
			emitted++
		case <-ctx.Done():
			return
		default:
			s.logger.Warn("market source result channel full, dropping market", "token_id", ref.TokenID)
		}
	}

	s.logger.Info("market source poll complete", "total", len(markets), "filtered", len(filtered), "new", emitted)
}

func (s *Source) fetchMarkets(ctx context.Context) ([]gammaMarket, error) {
	var all []gammaMarket
	offset, limit := 0, 100

	for {
		var page []gammaMarket
		resp, err := s.httpClient.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit":  strconv.Itoa(limit),
				"offset": strconv.Itoa(offset),
				"active": "true",
				"closed": "false",
			}).
			SetResult(&page).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("fetch markets page %d: %w", offset, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("fetch markets: status %d", resp.StatusCode())
		}

		all = append(all, page...)
		if len(page) < limit {
			break
		}
		offset += limit
	}

	return all, nil
}

// filter applies the hard eligibility-window filters: active/tradeable,
// minimum liquidity and volume, end date within the configured window,
// excluded slugs, and a resolvable token ID pair.
func (s *Source) filter(markets []gammaMarket) []types.MarketRef {
	excluded := make(map[string]bool)
	for _, slug := range s.cfg.ExcludeSlugs {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if slug != "" {
			excluded[slug] = true
		}
	}

	now := time.Now()
	maxEnd := now.AddDate(0, 0, s.cfg.MaxEndDateDays)

	var refs []types.MarketRef
	for _, m := range markets {
		if !m.Active || m.Closed || !m.AcceptingOrders || !m.EnableOrderBook {
			continue
		}
		if excluded[strings.ToLower(m.Slug)] {
			continue
		}

		liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)
		if liquidity < s.cfg.MinLiquidity {
			continue
		}
		if m.Volume24hr < s.cfg.MinVolume24h {
			continue
		}

		endTime, err := time.Parse(time.RFC3339, m.EndDate)
		if err != nil || endTime.Before(now) || endTime.After(maxEnd) {
			continue
		}

		tokenIDs, ok := parseTokenIDs(m.ClobTokenIds)
		if !ok {
			continue
		}

		tokenID := tokenIDs[0]
		if s.tokenSide == types.No && len(tokenIDs) > 1 {
			tokenID = tokenIDs[1]
		}

		refs = append(refs, types.MarketRef{
			TokenID:      tokenID,
			ConditionID:  m.ConditionID,
			Question:     m.Question,
			EndTime:      endTime,
			NegativeRisk: m.NegRisk,
			TickSize:     tickSizeFromFloat(m.OrderPriceMinTickSize),
			MinOrderSize: m.OrderMinSize,
		})
	}

	return refs
}

func parseTokenIDs(raw string) ([]string, bool) {
	if raw == "" {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil || len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

func tickSizeFromFloat(v float64) types.TickSize {
	switch v {
	case 0.1:
		return types.Tick01
	case 0.001:
		return types.Tick0001
	case 0.0001:
		return types.Tick00001
	default:
		return types.Tick001
	}
}
