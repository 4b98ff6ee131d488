package main

import (
	"context"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const traderPassword = "emulation-pass-1"

// trader is a synthetic market participant chasing a target return. The
// further behind target it is, the more it buys; the further ahead, the
// more it sells.
type trader struct {
	email string
	token string

	targetReturn  float64
	curReturn     float64
	curMoney      float64
	curAssets     float64
	initialMoney  float64
	buyP          float64
	sellP         float64
	skipP         float64
	maxProportion float64
	minProportion float64
}

func newTrader(email string, targetReturn, money float64) *trader {
	return &trader{
		email:         email,
		targetReturn:  targetReturn,
		curMoney:      money,
		initialMoney:  money,
		buyP:          0.2,
		sellP:         0.2,
		skipP:         0.2,
		maxProportion: 0.5,
		minProportion: 0.1,
	}
}

// act places at most one order for the day. The residual probability
// mass beyond the base buy/sell/skip rates shifts toward buying when the
// trader trails its target and toward selling when it leads.
func (t *trader) act(ctx context.Context, client *apiClient, rng *rand.Rand, assetReturn float64, instrumentUID uuid.UUID) error {
	buy, sell := t.buyP, t.sellP
	residual := 1 - t.skipP - t.buyP - t.sellP
	delta := t.targetReturn - t.curReturn
	if delta >= 0 {
		buy += delta / t.targetReturn * residual
	} else if t.curReturn != 0 {
		sell -= delta / t.curReturn * residual
	}

	rnd := rng.Float64()
	switch {
	case rnd <= buy:
		quantity, price := t.quote(rng, delta, assetReturn, true)
		return t.placeOrder(ctx, client, instrumentUID, "buy", price, quantity)
	case rnd <= buy+sell:
		quantity, price := t.quote(rng, delta, assetReturn, false)
		return t.placeOrder(ctx, client, instrumentUID, "sell", price, quantity)
	default:
		return nil
	}
}

// quote derives order size and price from the return gap. Noise is
// exponential with mean proportional to the relative gap; price is the
// discount bond form 1/(1+r).
func (t *trader) quote(rng *rand.Rand, delta, assetReturn float64, buying bool) (float64, float64) {
	scale := math.Max(t.targetReturn, t.curReturn)
	if scale == 0 {
		scale = t.targetReturn
	}
	noise := 0.01 * rng.ExpFloat64() * math.Abs(delta/scale)

	var proportion, rtrn, base float64
	if buying {
		proportion = t.minProportion + math.Max(delta/scale*(t.maxProportion-t.minProportion), 0)
		rtrn = assetReturn * (1 + sign(delta)*noise)
		base = t.curMoney
	} else {
		proportion = t.minProportion - math.Min(delta/scale*(t.maxProportion-t.minProportion), 0)
		rtrn = assetReturn * (1 - sign(delta)*noise)
		base = t.curAssets
	}
	return proportion * base, 1 / (1 + rtrn)
}

func (t *trader) placeOrder(ctx context.Context, client *apiClient, instrumentUID uuid.UUID, side string, price, quantity float64) error {
	p := floorDecimal(price)
	q := floorDecimal(quantity)
	if !p.IsPositive() || !q.IsPositive() {
		return nil
	}
	_, err := client.PlaceOrder(ctx, t.token, instrumentUID, side, p, q)
	return err
}

// seedBalances pushes the trader's starting cash and holdings to the server.
func (t *trader) seedBalances(ctx context.Context, client *apiClient, instrumentUID uuid.UUID) error {
	if err := client.SetCashBalance(ctx, t.token, floorDecimal(t.curMoney)); err != nil {
		return err
	}
	return client.SetQuantityBalance(ctx, t.token, instrumentUID, floorDecimal(t.curAssets))
}

// syncBalances pulls settled balances back and refreshes the realized
// return and, when a market price exists, the return target.
func (t *trader) syncBalances(ctx context.Context, client *apiClient, instrumentUID uuid.UUID) error {
	money, err := client.GetCashBalance(ctx, t.token)
	if err != nil {
		return err
	}
	assets, err := client.GetQuantityBalance(ctx, t.token, instrumentUID)
	if err != nil {
		return err
	}
	t.curMoney, _ = money.Float64()
	t.curAssets, _ = assets.Float64()
	t.curReturn = (t.curMoney + t.curAssets - t.initialMoney) / t.initialMoney

	price, err := client.Price(ctx, instrumentUID)
	if err != nil {
		return err
	}
	p, _ := price.Float64()
	if p > 0 {
		t.targetReturn = (1 - p) / p
	}
	return nil
}

// bank is the market maker. Every day it offers its whole inventory at
// the price implied by the decaying reference return.
type bank struct {
	email     string
	token     string
	curMoney  float64
	curAssets float64
}

func newBank(email string, assets float64) *bank {
	return &bank{email: email, curAssets: assets}
}

func (b *bank) seedBalances(ctx context.Context, client *apiClient, instrumentUID uuid.UUID) error {
	if err := client.SetCashBalance(ctx, b.token, floorDecimal(b.curMoney)); err != nil {
		return err
	}
	return client.SetQuantityBalance(ctx, b.token, instrumentUID, floorDecimal(b.curAssets))
}

func (b *bank) placeOrder(ctx context.Context, client *apiClient, instrumentUID uuid.UUID, curReturn float64) error {
	price := floorDecimal(1 / (1 + curReturn))
	quantity := floorDecimal(b.curAssets)
	if !price.IsPositive() || !quantity.IsPositive() {
		return nil
	}
	_, err := client.PlaceOrder(ctx, b.token, instrumentUID, "sell", price, quantity)
	return err
}

func (b *bank) syncBalances(ctx context.Context, client *apiClient, instrumentUID uuid.UUID) error {
	money, err := client.GetCashBalance(ctx, b.token)
	if err != nil {
		return err
	}
	assets, err := client.GetQuantityBalance(ctx, b.token, instrumentUID)
	if err != nil {
		return err
	}
	b.curMoney, _ = money.Float64()
	b.curAssets, _ = assets.Float64()
	return nil
}

// floorDecimal truncates to four decimal places, the API's tick size.
func floorDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(math.Floor(v*1e4) / 1e4)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
