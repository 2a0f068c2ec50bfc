package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"errandbit/pkg/config"
)

var Module = fx.Module("lightning",
	fx.Provide(NewLNBitsPayer),
)

// PayResult is the settlement proof returned by the provider.
type PayResult struct {
	PaymentHash     string
	PaymentPreimage string
}

// Payer pays a lightning address for a number of satoshis. Implementations
// must never report success without a hash/preimage pair.
type Payer interface {
	Pay(ctx context.Context, lightningAddress string, amountSats int64, memo string) (*PayResult, error)
}

type lnbitsPayer struct {
	url    string
	apiKey string
	client *http.Client
}

type PayerParams struct {
	fx.In
	Config *config.Config
}

func NewLNBitsPayer(p PayerParams) Payer {
	return &lnbitsPayer{
		url:    p.Config.Lightning.URL,
		apiKey: p.Config.Lightning.APIKey,
		client: &http.Client{Timeout: p.Config.Lightning.Timeout},
	}
}

type lnbitsPayRequest struct {
	LightningAddress string `json:"lightning_address"`
	AmountSats       int64  `json:"amount_sats"`
	Memo             string `json:"memo"`
}

type lnbitsPayResponse struct {
	PaymentHash     string `json:"payment_hash"`
	PaymentPreimage string `json:"preimage"`
	Detail          string `json:"detail"`
}

func (c *lnbitsPayer) Pay(ctx context.Context, lightningAddress string, amountSats int64, memo string) (*PayResult, error) {
	if err := CheckAddressDomain(lightningAddress); err != nil {
		return nil, err
	}

	body, err := json.Marshal(lnbitsPayRequest{
		LightningAddress: lightningAddress,
		AmountSats:       amountSats,
		Memo:             memo,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v1/payments/lnaddress", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightning provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	var out lnbitsPayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("lightning provider returned malformed response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := out.Detail
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("lightning payment failed: %s", detail)
	}

	// A success without settlement proof is treated as a failure.
	if out.PaymentHash == "" || out.PaymentPreimage == "" {
		zap.L().Warn("lightning provider reported success without proof",
			zap.String("lightning_address", lightningAddress))
		return nil, fmt.Errorf("lightning provider returned no payment proof")
	}

	return &PayResult{
		PaymentHash:     out.PaymentHash,
		PaymentPreimage: out.PaymentPreimage,
	}, nil
}
