package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techreview-es/mgz-harvester/internal/logger"
	"github.com/techreview-es/mgz-harvester/pkg/httpclient"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigsYAML(t *testing.T) {
	t.Setenv("HOOK_TOKEN", "s3cret")
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: hook
    type: HTTP
    http:
      url: " https://example.com/hooks/articles "
      headers:
        Authorization: "Bearer ${HOOK_TOKEN}"
        X-Empty: ""
  - id: queue
    type: queue
    queue:
      provider: AWS-SQS
      sqs:
        queue_url: https://sqs.eu-west-1.amazonaws.com/1/articles
        region: eu-west-1
  - id: off
    type: queue
    enabled: false
    queue:
      provider: gcp
      gcp:
        project_id: p
        topic: t
`)

	cfgs, err := LoadConfigs(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	hook := cfgs[0]
	assert.Equal(t, TypeHTTP, hook.Type)
	assert.Equal(t, "https://example.com/hooks/articles", hook.HTTP.URL)
	assert.Equal(t, "POST", hook.HTTP.Method)
	assert.Equal(t, httpDefaultTimeoutSeconds, hook.HTTP.TimeoutSeconds)
	assert.Equal(t, map[string]string{"Authorization": "Bearer s3cret"}, hook.HTTP.Headers)

	q := cfgs[1]
	assert.Equal(t, QueueProviderAWSSQS, q.Queue.Provider)
	assert.Equal(t, "eu-west-1", q.Queue.SQS.Region)
	assert.Empty(t, q.Queue.SQS.AccessKeyID)
}

func TestLoadConfigsJSON(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers": [
		{"id": "topic", "type": "queue", "queue": {"provider": "aws-sns", "sns": {
			"topic_arn": "arn:aws:sns:eu-west-1:1:articles", "region": "eu-west-1",
			"access_key_id": "AKIA", "secret_access_key": "secret"}}}
	]}`)

	cfgs, err := LoadConfigs(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, "AKIA", cfgs[0].Queue.SNS.AccessKeyID)
	assert.Equal(t, "secret", cfgs[0].Queue.SNS.SecretAccessKey)
}

func TestLoadConfigsRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing id":      `publishers: [{type: http, http: {url: "https://x"}}]`,
		"missing type":    `publishers: [{id: a}]`,
		"unknown type":    `publishers: [{id: a, type: smtp}]`,
		"http no url":     `publishers: [{id: a, type: http, http: {}}]`,
		"queue no config": `publishers: [{id: a, type: queue}]`,
		"azure":           `publishers: [{id: a, type: queue, queue: {provider: azure}}]`,
		"sqs no region":   `publishers: [{id: a, type: queue, queue: {provider: aws-sqs, sqs: {queue_url: u}}}]`,
		"half creds":      `publishers: [{id: a, type: queue, queue: {provider: aws-sns, sns: {topic_arn: t, region: r, access_key_id: k}}}]`,
		"gcp no topic":    `publishers: [{id: a, type: queue, queue: {provider: gcp, gcp: {project_id: p}}}]`,
		"duplicate id":    `publishers: [{id: a, type: http, http: {url: u}}, {id: a, type: http, http: {url: u}}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfigs(writeFile(t, "p.yaml", body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfigs(writeFile(t, "p.toml", ""))
	assert.ErrorContains(t, err, "not supported")
	_, err = LoadConfigs("  ")
	assert.Error(t, err)
}

func TestHTTPPublisher(t *testing.T) {
	var got Event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := PublisherConfig{ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{
		URL:     srv.URL,
		Method:  http.MethodPut,
		Headers: map[string]string{"Authorization": "Bearer x"},
	}}
	pub := newHTTPPublisherWithClient(cfg, httpclient.NewRestyClient(5*time.Second), nil)

	evt := NewEvent(EventArticleCreated, "doc-1", "1234")
	require.NoError(t, pub.Publish(context.Background(), evt))
	assert.Equal(t, "Bearer x", auth)
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, "article.created", got.Type)
	assert.Equal(t, "1234", got.OriginalID)
}

func TestHTTPPublisherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := PublisherConfig{ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: srv.URL, Method: "POST"}}
	err := newHTTPPublisherWithClient(cfg, httpclient.NewRestyClient(5*time.Second), nil).
		Publish(context.Background(), NewEvent(EventArticleUpdated, "d", "o"))
	assert.ErrorContains(t, err, "status 500")
}

type fakePublisher struct {
	id     string
	err    error
	events []Event
	closed bool
}

func (f *fakePublisher) ID() string   { return f.id }
func (f *fakePublisher) Type() string { return "fake" }
func (f *fakePublisher) Publish(_ context.Context, evt Event) error {
	f.events = append(f.events, evt)
	return f.err
}
func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestDispatcherNotifyContinuesPastFailures(t *testing.T) {
	bad := &fakePublisher{id: "bad", err: errors.New("boom")}
	good := &fakePublisher{id: "good"}
	d := NewDispatcher([]Publisher{bad, good}, logger.NopLogger{})
	assert.Equal(t, 2, d.Len())

	err := d.Notify(context.Background(), NewEvent(EventArticleCreated, "d", "o"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "publisher bad")
	assert.Len(t, good.events, 1)

	require.NoError(t, d.Close())
	assert.True(t, bad.closed)
	assert.True(t, good.closed)
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	assert.NoError(t, d.Notify(context.Background(), Event{}))
	assert.NoError(t, d.Close())
	assert.Equal(t, 0, d.Len())
}

func TestOpenWithoutFile(t *testing.T) {
	d, err := Open(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestBuildAllClosesOnFailure(t *testing.T) {
	built := &fakePublisher{id: "first"}
	reg := NewRegistry(map[string]Builder{
		"fake": func(context.Context, PublisherConfig, Logger) (Publisher, error) { return built, nil },
		"broken": func(context.Context, PublisherConfig, Logger) (Publisher, error) {
			return nil, errors.New("no credentials")
		},
	})
	_, err := reg.BuildAll(context.Background(), []PublisherConfig{
		{ID: "first", Type: "fake"},
		{ID: "second", Type: "broken"},
	}, nil)
	assert.ErrorContains(t, err, `build publisher "second"`)
	assert.True(t, built.closed)

	_, err = reg.Build(context.Background(), PublisherConfig{ID: "x", Type: "nope"}, nil)
	assert.Error(t, err)
}

type fakeSQS struct{ input *sqs.SendMessageInput }

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct{ err error }

func (f *fakeSNS) Publish(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return nil, f.err
}

func TestSQSSenderAttributes(t *testing.T) {
	client := &fakeSQS{}
	sender := &awsSQSSender{queueURL: "https://queue", client: client, log: logger.NopLogger{}}
	pub := &queuePublisher{id: "q", typ: TypeQueue, provider: QueueProviderAWSSQS, sender: sender}

	evt := NewEvent(EventArticleUpdated, "doc", "987")
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.NotNil(t, client.input)
	assert.Equal(t, "https://queue", aws.ToString(client.input.QueueUrl))
	assert.Equal(t, "article.updated", aws.ToString(client.input.MessageAttributes["event_type"].StringValue))
	assert.Equal(t, "987", aws.ToString(client.input.MessageAttributes["original_id"].StringValue))

	var body Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &body))
	assert.Equal(t, evt.ID, body.ID)
}

func TestSNSSenderWrapsErrors(t *testing.T) {
	sender := &awsSNSSender{topicARN: "arn", client: &fakeSNS{err: errors.New("throttled")}, log: logger.NopLogger{}}
	pub := &queuePublisher{id: "t", typ: TypeQueue, provider: QueueProviderAWSSNS, sender: sender}

	err := pub.Publish(context.Background(), NewEvent(EventArticleCreated, "d", "o"))
	assert.ErrorContains(t, err, "aws-sns")
	assert.ErrorContains(t, err, "throttled")
	assert.NoError(t, pub.Close())
}
