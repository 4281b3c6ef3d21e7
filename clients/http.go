package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pispworks/thirdparty-adapter/util"
)

const headerDestination string = "FSPIOP-Destination"

type HTTPConfig struct {
	BaseUrl string
	Timeout time.Duration
}

type RequestError struct {
	Method     string
	Url        string
	StatusCode int
}

func (e RequestError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Url, e.StatusCode)
}

type httpClient struct {
	baseUrl string
	client  *http.Client
}

func newHTTPClient(conf HTTPConfig) *httpClient {
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		baseUrl: conf.BaseUrl,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) send(ctx context.Context, method string, path string, body any, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	url := c.baseUrl + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, RequestError{Method: method, Url: url, StatusCode: resp.StatusCode}
	}
	return data, nil
}

func sendAndDecode[T any](ctx context.Context, c *httpClient, method string, path string, body any, headers map[string]string) (*T, error) {
	data, err := c.send(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	return util.NewJsonEncoderDecoder[T]().Decode(data)
}

func destinationHeader(toParticipantId string) map[string]string {
	if toParticipantId == "" {
		return nil
	}
	return map[string]string{headerDestination: toParticipantId}
}
