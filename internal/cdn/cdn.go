// Package cdn implements the Invalidation Hook (C8): CloudFront cache
// invalidation triggered whenever a dimension, cohort, property, or
// release mutation could change a served response (§4.8).
package cdn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/google/uuid"
)

// Invalidator issues CloudFront invalidations.
type Invalidator struct {
	client         *cloudfront.Client
	distributionID string
	timeout        time.Duration
	logger         *slog.Logger
}

// New builds an Invalidator.
func New(client *cloudfront.Client, distributionID string, timeout time.Duration, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{client: client, distributionID: distributionID, timeout: timeout, logger: logger}
}

// Invalidate purges every cached response under /release/{org}/{app}*,
// matching the single-path wildcard invalidation the original issues on
// every mutating release/dimension/cohort/property call. Best-effort: a
// failed invalidation is logged, not surfaced, since the mutation it
// follows has already committed.
func (inv *Invalidator) Invalidate(org, app string) {
	ctx, cancel := context.WithTimeout(context.Background(), inv.timeout)
	defer cancel()

	path := fmt.Sprintf("/release/%s/%s*", org, app)
	reference := uuid.NewString()

	_, err := inv.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(inv.distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(reference),
			Paths: &types.Paths{
				Quantity: aws.Int32(1),
				Items:    []string{path},
			},
		},
	})
	if err != nil {
		inv.logger.Warn("cloudfront invalidation failed", "org", org, "app", app, "error", err)
	}
}
