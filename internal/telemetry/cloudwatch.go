package telemetry

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"
)

type cloudwatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch publishes one Count datum per event, dimensioned by profile.
type CloudWatch struct {
	client    cloudwatchAPI
	namespace string
	log       zerolog.Logger
	now       func() time.Time
}

func NewCloudWatch(client cloudwatchAPI, namespace string, log zerolog.Logger) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, log: log, now: time.Now}
}

func (c *CloudWatch) Record(ctx context.Context, event, subjectID string, attrs Attrs) {
	if subjectID == "" {
		subjectID = "unknown"
	}

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []types.MetricDatum{{
			MetricName: aws.String(event),
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(c.now()),
			Dimensions: []types.Dimension{{
				Name:  aws.String("ProfileId"),
				Value: aws.String(subjectID),
			}},
		}},
	})
	if err != nil {
		c.log.Error().Err(err).Str("event_type", event).Msg("error logging to CloudWatch")
		return
	}

	c.log.Debug().Str("event_type", event).Str("profile_id", subjectID).Fields(map[string]any(attrs)).Msg("logged to CloudWatch")
}
