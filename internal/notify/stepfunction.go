// Package notify triggers the downstream workflow after a batch of uploads.
package notify

import (
	"context"
	"encoding/json"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rotisserie/eris"
)

// SFNAPI is the subset of the Step Functions client used here; tests supply
// a fake.
type SFNAPI interface {
	StartExecution(ctx context.Context, in *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// ManifestFile describes one uploaded recording in the batch manifest.
type ManifestFile struct {
	CallID    string `json:"call_id"`
	LocalPath string `json:"local_path"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Agent     string `json:"agent"`
	Customer  string `json:"customer"`
	Timestamp string `json:"timestamp"`
}

// Manifest is the JSON input handed to the workflow execution.
type Manifest struct {
	Domain      string         `json:"domain"`
	GeneratedAt time.Time      `json:"generated_at"`
	Count       int            `json:"count"`
	Files       []ManifestFile `json:"files"`
}

// Notifier starts one workflow execution per run, only when at least one
// upload succeeded. Failure here is best-effort: uploads and state remain
// valid.
type Notifier struct {
	api SFNAPI
	arn string
}

// New builds a notifier against the real Step Functions service.
func New(ctx context.Context, region, arn string) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "notify: load aws config")
	}
	return NewWithAPI(sfn.NewFromConfig(awsCfg), arn), nil
}

// NewWithAPI wraps an existing client; used by tests.
func NewWithAPI(api SFNAPI, arn string) *Notifier {
	return &Notifier{api: api, arn: arn}
}

// Notify starts the workflow execution with the batch manifest and returns
// the execution ARN.
func (n *Notifier) Notify(ctx context.Context, m Manifest) (string, error) {
	m.Count = len(m.Files)
	m.GeneratedAt = m.GeneratedAt.UTC().Truncate(time.Second)

	input, err := json.Marshal(m)
	if err != nil {
		return "", eris.Wrap(err, "notify: marshal manifest")
	}

	inputStr := string(input)
	out, err := n.api.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: &n.arn,
		Input:           &inputStr,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notify: start execution %s", n.arn)
	}

	arn := ""
	if out.ExecutionArn != nil {
		arn = *out.ExecutionArn
	}
	return arn, nil
}
