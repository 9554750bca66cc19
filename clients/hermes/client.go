package hermes

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/timeout"

	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

const (
	latestUpdatePath = "/v2/updates/price/latest"
	requestTimeout   = 10 * time.Second
)

// Client fetches the newest signed price update for a feed from a
// Hermes-compatible attestation service.
type Client struct {
	cli     *gentleman.Client
	symbols map[string]string
	logger  zerolog.Logger
}

// NewClient creates a Hermes client. The symbols map provides the canonical
// feed ID -> symbol mapping; unknown feeds keep an empty symbol.
func NewClient(baseURL string, symbols map[string]string, logger zerolog.Logger) *Client {
	cli := gentleman.New()
	cli.URL(baseURL)
	cli.Use(timeout.Request(requestTimeout))

	normalized := make(map[string]string, len(symbols))
	for id, symbol := range symbols {
		normalized[normalizeFeedID(id)] = symbol
	}

	return &Client{
		cli:     cli,
		symbols: normalized,
		logger:  logger.With().Str(logging.FieldModule, "hermes_client").Logger(),
	}
}

type latestUpdateResponse struct {
	Binary struct {
		Encoding string   `json:"encoding"`
		Data     []string `json:"data"`
	} `json:"binary"`
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Conf        string `json:"conf"`
			Expo        int32  `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"parsed"`
}

// LatestUpdate retrieves the newest signed update for the feed as an opaque
// binary payload plus parsed metadata.
func (c *Client) LatestUpdate(ctx context.Context, feedID string) (*models.PriceAttestation, error) {
	req := c.cli.Request().
		Method("GET").
		Path(latestUpdatePath).
		SetQuery("ids[]", feedID).
		SetQuery("encoding", "hex")

	req.Context.Request = req.Context.Request.WithContext(ctx)

	res, err := req.Send()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch price update")
	}
	if !res.Ok {
		return nil, errors.Errorf("attestation service returned status %d", res.StatusCode)
	}

	var payload latestUpdateResponse
	if err := res.JSON(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode price update response")
	}

	if len(payload.Binary.Data) == 0 || len(payload.Parsed) == 0 {
		return nil, errors.Errorf("no price update available for feed %s", feedID)
	}

	data, err := hex.DecodeString(strings.TrimPrefix(payload.Binary.Data[0], "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode binary payload")
	}

	parsed := payload.Parsed[0]

	price, err := strconv.ParseInt(parsed.Price.Price, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid price %q", parsed.Price.Price)
	}

	conf, err := strconv.ParseUint(parsed.Price.Conf, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid confidence %q", parsed.Price.Conf)
	}

	attestation := &models.PriceAttestation{
		FeedID:      normalizeFeedID(parsed.ID),
		Symbol:      c.symbols[normalizeFeedID(parsed.ID)],
		Data:        data,
		Price:       price,
		Conf:        conf,
		Expo:        parsed.Price.Expo,
		PublishTime: time.Unix(parsed.Price.PublishTime, 0).UTC(),
	}

	c.logger.Debug().
		Str(logging.FieldFeed, attestation.FeedID).
		Str("symbol", attestation.Symbol).
		Int64("price", attestation.Price).
		Time("publish_time", attestation.PublishTime).
		Msg("Fetched price attestation")

	return attestation, nil
}

// normalizeFeedID strips the 0x prefix so feed IDs compare equal regardless
// of how the service or the config spells them.
func normalizeFeedID(id string) string {
	return strings.ToLower(strings.TrimPrefix(id, "0x"))
}
