package network

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	rmm "github.com/vpscope/vpsagent/shared"
)

// Reporter posts metric snapshots to a dashboard endpoint
type Reporter struct {
	url    string
	client *resty.Client
	logger logrus.FieldLogger
}

func NewReporter(url, token, proxy string, logger logrus.FieldLogger) *Reporter {
	headers := make(map[string]string)
	headers["Content-Type"] = "application/json"
	if len(token) > 0 {
		headers["Authorization"] = fmt.Sprintf("Token %s", token)
	}

	client := resty.New()
	client.SetCloseConnection(true)
	client.SetHeaders(headers)
	client.SetTimeout(15 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(5 * time.Second)
	client.SetRetryMaxWaitTime(30 * time.Second)
	if len(proxy) > 0 {
		client.SetProxy(proxy)
	}

	return &Reporter{url: url, client: client, logger: logger}
}

func (r *Reporter) Send(ctx context.Context, snap *rmm.Snapshot) error {
	resp, err := r.client.R().SetContext(ctx).SetBody(snap).Post(r.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("report rejected: %s", resp.Status())
	}
	return nil
}

// Run sends a fresh snapshot every interval until ctx is done
func (r *Reporter) Run(ctx context.Context, interval time.Duration, get func(context.Context) (*rmm.Snapshot, error)) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.report(ctx, get)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reporter) report(ctx context.Context, get func(context.Context) (*rmm.Snapshot, error)) {
	snap, err := get(ctx)
	if err != nil {
		r.logger.Debugln("report: sample:", err)
		return
	}
	if err := r.Send(ctx, snap); err != nil {
		r.logger.Errorln("report:", err)
	}
}
