package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/aws/smithy-go"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// QueryAPIRegion is the region hosting the Price List Query API endpoint.
const QueryAPIRegion = "us-east-1"

// KindQueryAPI labels Query API calls in logs and metrics.
const KindQueryAPI = "query_api"

// ErrQueryRejected is returned when the Query API refuses the request
// (unknown service code, bad filter, missing permissions).
var ErrQueryRejected = errors.New("price list query rejected")

// ProductsAPI is the subset of the AWS pricing client used by QueryClient.
type ProductsAPI interface {
	GetProducts(ctx context.Context, params *awspricing.GetProductsInput, optFns ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error)
}

// QueryClient resolves single SKUs through the AWS Price List Query API
// instead of downloading a whole regional document.
type QueryClient struct {
	api      ProductsAPI
	logger   zerolog.Logger
	observer Observer
}

// NewQueryClient wraps an existing pricing API client.
func NewQueryClient(api ProductsAPI, logger zerolog.Logger, observer Observer) *QueryClient {
	return &QueryClient{api: api, logger: logger, observer: observer}
}

// LoadQueryClient builds a QueryClient from the default AWS credential chain.
func LoadQueryClient(ctx context.Context, region string, logger zerolog.Logger, observer Observer) (*QueryClient, error) {
	if region == "" {
		region = QueryAPIRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewQueryClient(awspricing.NewFromConfig(cfg), logger, observer), nil
}

// priceListItem is one element of GetProductsOutput.PriceList. Unlike the
// bulk documents, its terms are keyed Type -> OfferTermCode.
type priceListItem struct {
	Product         Product                    `json:"product"`
	ServiceCode     string                     `json:"serviceCode"`
	Terms           map[string]map[string]Term `json:"terms"`
	Version         string                     `json:"version"`
	PublicationDate string                     `json:"publicationDate"`
}

// SKUDocument returns a Document holding only sku, with every term type
// the API reports for it. A SKU that does not belong to region yields an
// empty document, so the lookup reports it as not found.
func (q *QueryClient) SKUDocument(ctx context.Context, service, region, sku string) (doc *Document, err error) {
	start := time.Now()
	defer func() {
		if q.observer != nil {
			q.observer.ObserveFetch(KindQueryAPI, time.Since(start), err)
		}
	}()

	out, err := q.api.GetProducts(ctx, &awspricing.GetProductsInput{
		ServiceCode:   aws.String(service),
		FormatVersion: aws.String("aws_v1"),
		MaxResults:    aws.Int32(10),
		Filters: []types.Filter{
			{
				Type:  types.FilterTypeTermMatch,
				Field: aws.String("sku"),
				Value: aws.String(sku),
			},
			{
				Type:  types.FilterTypeTermMatch,
				Field: aws.String("regionCode"),
				Value: aws.String(region),
			},
		},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			switch ae.ErrorCode() {
			case "NotFoundException", "InvalidParameterException", "AccessDeniedException":
				return nil, fmt.Errorf("%w: %s: %s", ErrQueryRejected, ae.ErrorCode(), ae.ErrorMessage())
			}
		}
		return nil, fmt.Errorf("GetProducts %s/%s: %w", service, sku, err)
	}

	doc = &Document{
		OfferCode: service,
		Products:  map[string]Product{},
		Terms:     map[string]map[string]map[string]Term{},
	}
	for _, raw := range out.PriceList {
		var item priceListItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			q.logger.Warn().Err(err).Str("service", service).Str("sku", sku).Msg("skipping malformed price list item")
			continue
		}
		if item.Product.Sku == "" {
			continue
		}
		doc.Version = item.Version
		doc.PublicationDate = item.PublicationDate
		doc.Products[item.Product.Sku] = item.Product
		for termType, terms := range item.Terms {
			if doc.Terms[termType] == nil {
				doc.Terms[termType] = map[string]map[string]Term{}
			}
			doc.Terms[termType][item.Product.Sku] = terms
		}
	}

	q.logger.Debug().
		Str("service", service).
		Str("region", region).
		Str("sku", sku).
		Int("items", len(out.PriceList)).
		Msg("price list query completed")
	return doc, nil
}
